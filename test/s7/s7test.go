package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"scadabridge/pkg/protocol/s7"
	"sort"
	"time"
)

// 手动联调: 读取一台PLC上所有变量并打印
// go run ./test/s7 -device PLC2 -location 127.0.0.1
func main() {
	name := flag.String("device", "PLC1", "device from the built-in plant wiring")
	location := flag.String("location", "", "override the device ip")
	timeout := flag.Duration("timeout", 2*time.Second, "io timeout")
	flag.Parse()

	devices := s7.DefaultDevices()
	for _, d := range devices {
		if d.Name == *name && len(*location) > 0 {
			d.Address.Location = *location
		}
	}
	registry, err := s7.NewRegistry(devices, *timeout)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer registry.DisconnectAll()

	client, err := registry.Get(*name)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2**timeout)
	defer cancel()
	if err = client.Connect(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("connected", client.Device.Address.Endpoint())

	values, err := client.ReadVariables(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v, _ := client.Device.GetVariable(n)
		fmt.Printf("%-16s %-12s %v\n", n, v.Address, values[n])
	}
}
