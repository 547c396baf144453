package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tokenring/pkg/framework"
	"github.com/robotalks/tokenring/pkg/sim"
	"github.com/robotalks/tokenring/pkg/telemetry"
)

var (
	configFile string
	nodes      = 3
	duration   = 5 * time.Second
	holdMs     = -1
	trace      = true
)

func init() {
	flag.StringVar(&configFile, "f", configFile, "Chain topology file (YAML).")
	flag.IntVar(&nodes, "n", nodes, "Number of nodes when no topology file is given.")
	flag.DurationVar(&duration, "d", duration, "Simulation duration, 0 to run until interrupted.")
	flag.IntVar(&holdMs, "hold-ms", holdMs, "Override indicator hold in ms.")
	flag.BoolVar(&trace, "trace", trace, "Print events.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := sim.DefaultConfig(nodes)
	if configFile != "" {
		var err error
		if conf, err = sim.LoadConfig(configFile); err != nil {
			log.Fatalln(err)
		}
	}
	if holdMs >= 0 {
		conf.Chain.HoldMs = &holdMs
	}

	var observers []telemetry.Observer
	if trace {
		start := time.Now()
		observers = append(observers, telemetry.ObserveFunc(func(ev telemetry.Event) {
			fmt.Printf("%10s %s\n", ev.Time.Sub(start).Truncate(time.Microsecond), ev)
		}))
	}
	chain, err := sim.Build(conf, observers...)
	if err != nil {
		log.Fatalln(err)
	}

	// the signal-handling runner only provides the stop context.
	ctx := fx.NewRunner().HandleSignals().Context
	if err := chain.RunFor(ctx, duration); err != nil {
		log.Println(err)
	}
	if out := chain.ConsoleOutput(); out != "" {
		fmt.Printf("--- console ---\n%s", out)
	}
	for n, ch := range chain.Channels {
		node := chain.Nodes[n]
		fmt.Printf("%s: %s overruns=%d\n", node.ID, node.State(), ch.Overruns())
	}
}
