package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/tokenring/pkg/env"
	fx "github.com/robotalks/tokenring/pkg/framework"
	"github.com/robotalks/tokenring/pkg/ring"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	e := env.NewConfig().MustNewEnv(ring.ParkHalter{})
	defer e.Close()
	fx.NewRunner().HandleSignals().Add(e).WaitOrFail()
}
