// Command coordinator runs the bundled single-process demo: the auction
// coordinator plus one embedded robot-proxy per fleet robot, all sharing one
// in-process messaging bus. Production deployments run the coordinator and
// each robot proxy as separate processes over a real messaging.Bus
// implementation; that transport is out of scope here (see
// internal/messaging.Bus's doc comment), so this binary demonstrates the
// coordination logic rather than a networked deployment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/fleet-auction/internal/auction"
	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/ccu"
	"github.com/joeycumines/fleet-auction/internal/config"
	"github.com/joeycumines/fleet-auction/internal/demotasks"
	"github.com/joeycumines/fleet-auction/internal/dispatch"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/messaging/inproc"
	"github.com/joeycumines/fleet-auction/internal/monitor"
	"github.com/joeycumines/fleet-auction/internal/planner"
	"github.com/joeycumines/fleet-auction/internal/robotproxy"
	"github.com/joeycumines/fleet-auction/internal/timetable"
)

const coordinatorPeer = "coordinator"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configFile = flag.String("file", "", "path to the coordinator's YAML config (required)")
		experiment = flag.String("experiment", "", "experiment name, tagged onto every log line")
		approach   = flag.String("approach", "tessi", "allocation approach name, tagged onto every log line")
		routesFile = flag.String("routes", "", "path to the YAML route table the planner serves (required)")
		tasksFile  = flag.String("tasks", "", "path to the YAML demo task list (required)")
		depot      = flag.String("depot", "depot", "every robot's starting location")
	)
	flag.Parse()

	if *configFile == "" || *routesFile == "" || *tasksFile == "" {
		fmt.Fprintln(os.Stderr, "coordinator: --file, --routes, and --tasks are required")
		return 1
	}

	logger := logging.New(logiface.LevelInfo).
		Clone().Str("experiment", *experiment).Str("approach", *approach).Logger()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Err().Err(err).Log(`failed to load config`)
		return 1
	}

	routes, err := planner.LoadStaticMap(*routesFile)
	if err != nil {
		logger.Err().Err(err).Log(`failed to load route table`)
		return 1
	}

	rule, err := bidder.NewRule(cfg.BiddingRule)
	if err != nil {
		logger.Err().Err(err).Log(`failed to resolve bidding rule`)
		return 1
	}

	ztp := time.Now()

	tasks, err := demotasks.Load(*tasksFile, ztp)
	if err != nil {
		logger.Err().Err(err).Log(`failed to load demo tasks`)
		return 1
	}

	bus := inproc.New(256)

	taskRegistry := ccu.NewTaskRegistry()
	for _, t := range tasks {
		taskRegistry.Add(t)
	}
	timetables := ccu.NewTimetableRegistry()
	poses := ccu.NewPoseRegistry()
	for _, robotID := range cfg.Fleet {
		timetables.Seed(robotID, timetable.New(robotID, ztp))
		poses.SetPose(robotID, *depot)
	}

	pub := ccu.NewBusPublisher(bus)
	auctioneer := auction.New(cfg.Fleet, cfg.ClosureWindow, cfg.FreezeWindow, cfg.AlternativeTimeslots, ztp, taskRegistry, timetables, pub, logging.Component(logger, "auctioneer"))
	dispatcher := dispatch.New(cfg.Fleet, cfg.FreezeWindow, cfg.NQueuedTasks, routes, poses, timetables, pub, pub, logging.Component(logger, "dispatcher"))
	defer dispatcher.Close()
	mon := monitor.New(taskRegistry, timetables, routes, auctioneer, pub, cfg.RecoveryMethod, logging.Component(logger, "monitor"))

	coordinator := ccu.New(time.Second, bus, coordinatorPeer, auctioneer, dispatcher, mon, pub, logging.Component(logger, "coordinator"))
	defer coordinator.Close()

	ctx, stop := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	forcedExit := make(chan int, 1)
	go func() {
		select {
		case <-sigCh:
			stop()
		case <-done:
			return
		}
		select {
		case <-sigCh:
			forcedExit <- 130
		case <-done:
		}
	}()

	for _, robotID := range cfg.Fleet {
		b := &bidder.Bidder{
			RobotID:              robotID,
			Pose:                 *depot,
			Rule:                 rule,
			Alpha:                cfg.BiddingAlpha,
			AlternativeTimeslots: cfg.AlternativeTimeslots,
			Planner:              routes,
			Timetable:            timetable.New(robotID, ztp),
		}
		proxy := robotproxy.New(robotID, coordinatorPeer, bus, b, logging.Component(logger, "robot-proxy:"+robotID))
		defer proxy.Close()
		go func() {
			if err := proxy.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warning().Str("robot_id", robotID).Err(err).Log(`robot proxy exited`)
			}
		}()
	}

	runErr := coordinator.Run(ctx)
	close(done)

	select {
	case code := <-forcedExit:
		return code
	default:
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Err().Err(runErr).Log(`coordinator exited with an error`)
		return 1
	}
	return 0
}
