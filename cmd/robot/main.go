// Command robot runs a single robot's proxy in isolation: it demonstrates
// the bidding/contract/dispatch wiring shape (internal/robotproxy) against
// its own local, single-process messaging bus. It does not connect to a
// separately-running coordinator process over a network: the transport
// messaging.Bus abstracts over is an external collaborator out of scope
// here (see internal/messaging.Bus's doc comment and cmd/coordinator, which
// bundles a coordinator and every robot proxy into one process sharing one
// bus). Run with --tasks to have this binary announce a demo task list to
// itself at startup, so the proxy's bid computation has something to react
// to before it settles into listening for further messages.
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

	"github.com/joeycumines/fleet-auction/internal/bidder"
	"github.com/joeycumines/fleet-auction/internal/config"
	"github.com/joeycumines/fleet-auction/internal/demotasks"
	"github.com/joeycumines/fleet-auction/internal/logging"
	"github.com/joeycumines/fleet-auction/internal/messaging"
	"github.com/joeycumines/fleet-auction/internal/messaging/inproc"
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
		routesFile = flag.String("routes", "", "path to the YAML route table the planner serves (required)")
		tasksFile  = flag.String("tasks", "", "path to a YAML demo task list this robot announces to itself at startup")
		rule       = flag.String("rule", string(config.BiddingRuleCompletionTime), "bidding rule to score candidate insertions with")
		alpha      = flag.Float64("alpha", 0.1, "distance weight for the *_distance bidding rules")
		altSlots   = flag.Bool("alternative-timeslots", false, "fall back to a soft bid when no hard insertion is consistent")
		depot      = flag.String("depot", "depot", "this robot's starting location")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: robot [flags] ROBOT-ID")
		return 1
	}
	robotID := flag.Arg(0)

	if *routesFile == "" {
		fmt.Fprintln(os.Stderr, "robot: --routes is required")
		return 1
	}

	logger := logging.Component(logging.New(logiface.LevelInfo), "robot-proxy:"+robotID)

	routes, err := planner.LoadStaticMap(*routesFile)
	if err != nil {
		logger.Err().Err(err).Log(`failed to load route table`)
		return 1
	}

	biddingRule, err := bidder.NewRule(config.BiddingRule(*rule))
	if err != nil {
		logger.Err().Err(err).Log(`failed to resolve bidding rule`)
		return 1
	}

	ztp := time.Now()

	b := &bidder.Bidder{
		RobotID:              robotID,
		Pose:                 *depot,
		Rule:                 biddingRule,
		Alpha:                *alpha,
		AlternativeTimeslots: *altSlots,
		Planner:              routes,
		Timetable:            timetable.New(robotID, ztp),
	}

	bus := inproc.New(64)
	proxy := robotproxy.New(robotID, coordinatorPeer, bus, b, logger)
	defer proxy.Close()

	if *tasksFile != "" {
		tasks, err := demotasks.Load(*tasksFile, ztp)
		if err != nil {
			logger.Err().Err(err).Log(`failed to load demo tasks`)
			return 1
		}
		payload := messaging.TaskAnnouncementPayload{RoundID: "demo-round", ZTP: ztp, Tasks: tasks}
		env, err := messaging.NewEnvelope(messaging.TypeTaskAnnouncement, ztp, payload)
		if err != nil {
			logger.Err().Err(err).Log(`failed to build the demo announcement`)
			return 1
		}
		if err := bus.Publish(messaging.GroupTaskAllocation, env); err != nil {
			logger.Err().Err(err).Log(`failed to publish the demo announcement`)
			return 1
		}
	}

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

	runErr := proxy.Run(ctx)
	close(done)

	select {
	case code := <-forcedExit:
		return code
	default:
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Err().Err(runErr).Log(`robot proxy exited with an error`)
		return 1
	}
	return 0
}
