// Command iioctl is a thin CLI over the iio client package: discover IIOD
// hosts, print a context's device/channel/attribute tree, and read/write a
// single attribute. It exists to exercise the core library end to end, the
// way GoSDR's cmd/mdns-test and cmd/connmgr_binary_prodbe exercise theirs --
// flag-parsed subcommands, plain fmt banners, no subprocess framework.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/analogdevicesinc/libiio-sub000/iio"
	"github.com/analogdevicesinc/libiio-sub000/internal/mdns"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = runScan(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "attr":
		err = runAttr(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "iioctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: iioctl <scan|info|attr> [flags]")
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	timeout := fs.Int("timeout", 5, "discovery timeout in seconds")
	fs.Parse(args)

	fmt.Println("===============================================================")
	fmt.Println(" mDNS / DNS-SD Discovery")
	fmt.Println("===============================================================")
	fmt.Printf(" Service : _iio._tcp.local\n")
	fmt.Printf(" Timeout : %d seconds\n", *timeout)
	fmt.Println("---------------------------------------------------------------")

	start := time.Now()
	hosts, err := mdns.Discover(time.Duration(*timeout) * time.Second)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if len(hosts) == 0 {
		fmt.Printf("No devices found (%s)\n", elapsed.Truncate(time.Millisecond))
		return nil
	}
	fmt.Printf("Discovered %d device(s) in %s\n", len(hosts), elapsed.Truncate(time.Millisecond))
	for i, h := range hosts {
		fmt.Printf(" [%d] %s  host=%s port=%d\n", i+1, h.Instance, h.Hostname, h.Port)
		for _, ip := range h.Addresses {
			fmt.Printf("       addr=%s\n", ip.String())
		}
	}
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	profilePath := fs.String("profiles", defaultProfilePath(), "profile INI file")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: iioctl info [-profiles path] <uri-or-profile>")
	}

	uri, timeout, err := resolveTarget(*profilePath, fs.Arg(0))
	if err != nil {
		return err
	}
	ctx, err := iio.Connect(uri, iio.WithTimeout(timeout))
	if err != nil {
		return fmt.Errorf("connect %s: %w", uri, err)
	}
	defer ctx.Destroy()

	fmt.Println("===============================================================")
	fmt.Printf(" Context %s\n", ctx.Name)
	fmt.Println("===============================================================")
	fmt.Printf(" URI         : %s\n", ctx.URI)
	fmt.Printf(" Description : %s\n", ctx.Description)
	for _, key := range ctx.AttrNames() {
		v, _ := ctx.Attr(key)
		fmt.Printf(" attr %-24s = %s\n", key, v)
	}
	fmt.Println("---------------------------------------------------------------")

	for _, dev := range ctx.Devices() {
		fmt.Printf(" Device %s (%s)\n", dev.ID, dev.Name)
		for _, name := range dev.DeviceAttrNames() {
			fmt.Printf("   device-attr  %s\n", name)
		}
		for _, ch := range dev.Channels {
			role := "input"
			if ch.IsOutput {
				role = "output"
			}
			scan := ""
			if ch.IsScanElement {
				scan = fmt.Sprintf(" scan#%d bits=%d length=%d shift=%d",
					ch.Number, ch.Format.Bits, ch.Format.Length, ch.Format.Shift)
			}
			fmt.Printf("   channel %-16s %-6s%s\n", ch.Label(), role, scan)
		}
	}
	return nil
}

func runAttr(args []string) error {
	fs := flag.NewFlagSet("attr", flag.ExitOnError)
	profilePath := fs.String("profiles", defaultProfilePath(), "profile INI file")
	device := fs.String("device", "", "device id or name")
	channel := fs.String("channel", "", "channel id or name (channel-scoped attrs only)")
	write := fs.String("write", "", "value to write; if empty, the attribute is read")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: iioctl attr [-profiles path] [-device id] [-channel id] [-write value] <uri-or-profile> <attr-name>")
	}

	uri, timeout, err := resolveTarget(*profilePath, fs.Arg(0))
	if err != nil {
		return err
	}
	name := fs.Arg(1)

	ctx, err := iio.Connect(uri, iio.WithTimeout(timeout))
	if err != nil {
		return fmt.Errorf("connect %s: %w", uri, err)
	}
	defer ctx.Destroy()

	if *device == "" {
		return fmt.Errorf("attr requires -device")
	}
	dev := ctx.FindDevice(*device)
	if dev == nil {
		return fmt.Errorf("no such device %q", *device)
	}

	if *channel != "" {
		ch := dev.FindChannel(*channel)
		if ch == nil {
			return fmt.Errorf("no such channel %q on device %q", *channel, *device)
		}
		if *write != "" {
			n, err := ch.WriteAttr(name, *write)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d bytes\n", n)
			return nil
		}
		v, err := ch.ReadAttr(name)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	}

	if *write != "" {
		n, err := dev.WriteAttr(name, *write)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes\n", n)
		return nil
	}
	v, err := dev.ReadAttr(name)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}
