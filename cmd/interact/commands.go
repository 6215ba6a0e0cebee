package main

import (
	"fmt"

	"github.com/branched-services/go-interact"
	"github.com/urfave/cli/v2"
)

var (
	valueFlag = &cli.StringFlag{
		Name:     "value",
		Aliases:  []string{"v"},
		Usage:    "unsigned amount, separators allowed (e.g. 1,000)",
		Required: true,
	}
	countFlag = &cli.IntFlag{
		Name:     "count",
		Aliases:  []string{"c"},
		Usage:    "number of counters to deploy",
		Required: true,
	}
)

var Deploy = cli.Command{
	Action: withSession(true, deploy),
	Name:   "deploy",
	Usage:  "deploys a counter starting at zero",
}

var DeployCaller = cli.Command{
	Action: withSession(true, deployCaller),
	Name:   "deploy-caller",
	Usage:  "deploys a caller bound to the current counter",
}

var MultiDeploy = cli.Command{
	Action: withSession(true, multiDeploy),
	Name:   "multi-deploy",
	Usage:  "deploys several counters in one concurrent batch",
	Flags:  []cli.Flag{countFlag},
}

var Add = cli.Command{
	Action: withSession(false, add),
	Name:   "add",
	Usage:  "adds a value to the counter",
	Flags:  []cli.Flag{valueFlag},
}

var CallCaller = cli.Command{
	Action: withSession(false, callCaller),
	Name:   "call-caller",
	Usage:  "adds a value to the counter through the caller",
	Flags:  []cli.Flag{valueFlag},
}

var Feed = cli.Command{
	Action: withSession(false, feed),
	Name:   "feed",
	Usage:  "transfers the feed value to the counter",
}

var Sum = cli.Command{
	Action: withSession(false, sum),
	Name:   "sum",
	Usage:  "prints the counter's sum",
}

var Upgrade = cli.Command{
	Action: withSession(true, upgrade),
	Name:   "upgrade",
	Usage:  "upgrades the counter in place and resets its sum",
	Flags:  []cli.Flag{valueFlag},
}

var Target = cli.Command{
	Action: withSession(false, target),
	Name:   "target",
	Usage:  "prints the counter address stored in the caller",
}

func deploy(c *cli.Context, client *interact.Client) error {
	addr, err := client.Deploy(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("new address: %s\n", addr.Hex())
	return nil
}

func deployCaller(c *cli.Context, client *interact.Client) error {
	addr, err := client.DeployCaller(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("new caller address: %s\n", addr.Hex())
	return nil
}

func multiDeploy(c *cli.Context, client *interact.Client) error {
	deployed, err := client.MultiDeploy(c.Context, c.Int(countFlag.Name))
	for _, addr := range deployed {
		fmt.Printf("new address: %s\n", addr.Hex())
	}
	return err
}

func add(c *cli.Context, client *interact.Client) error {
	amount, err := interact.ParseNumExpr(c.String(valueFlag.Name))
	if err != nil {
		return err
	}
	return client.Add(c.Context, amount)
}

func callCaller(c *cli.Context, client *interact.Client) error {
	amount, err := interact.ParseNumExpr(c.String(valueFlag.Name))
	if err != nil {
		return err
	}
	return client.CallCaller(c.Context, amount)
}

func feed(c *cli.Context, client *interact.Client) error {
	return client.Feed(c.Context)
}

func sum(c *cli.Context, client *interact.Client) error {
	total, err := client.Sum(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("sum: %s\n", total)
	return nil
}

func upgrade(c *cli.Context, client *interact.Client) error {
	value, err := interact.ParseNumExpr(c.String(valueFlag.Name))
	if err != nil {
		return err
	}
	response, err := client.Upgrade(c.Context, value)
	if err != nil {
		return err
	}
	fmt.Printf("response: %s\n", response)
	return nil
}

func target(c *cli.Context, client *interact.Client) error {
	addr, err := client.TargetAddress(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("target address: %s\n", addr.Hex())
	return nil
}
