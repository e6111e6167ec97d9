// Command sdbd is the smart development bridge host daemon: it multiplexes
// logical byte-streams between server-control clients and attached devices
// over the frame protocol implemented by package transport.
package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/TizenTeam/sdb/daemon"
	"github.com/TizenTeam/sdb/ioevent"
	"github.com/TizenTeam/sdb/packet"
)

var (
	controlPort = pflag.Int("port", 26099, "server-control port")
	scanBase    = pflag.Int("scan-base", 26101, "local-transport/emulator scan base port")
	scanSlots   = pflag.Int("scan-slots", 15, "number of local-transport scan slots")
	packetCap   = pflag.Int("packet-pool-cap", 4096, "maximum outstanding packets across all transports (0 = unbounded)")
)

func main() {
	// glog registers -v/-vmodule on the standard flag set.
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	pflag.Parse()
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Errorf("sdbd: %v", err)
		os.Exit(1)
	}
}

func run() (err error) {
	reactor, err := ioevent.NewReactor()
	if err != nil {
		return fmt.Errorf("sdbd: create event core: %w", err)
	}
	defer func() {
		err = multierr.Append(err, reactor.Close())
	}()

	pool := packet.NewPool(*packetCap)
	d := daemon.New(reactor, pool, *controlPort, *scanBase)

	if err := d.ListenControl(); err != nil {
		return fmt.Errorf("sdbd: control port %d: %w", *controlPort, err)
	}
	glog.Infof("sdbd: listening for clients on port %d", *controlPort)

	if err := d.ListenQemuControl(*scanSlots); err != nil {
		return fmt.Errorf("sdbd: qemu control listeners: %w", err)
	}

	ctx := cancelOnSignals(context.Background(), os.Interrupt, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- reactor.Run() }()

	select {
	case <-ctx.Done():
		glog.Info("sdbd: signal received, shutting down")
		d.Kill()
		<-d.Done()
		return nil
	case <-d.Done():
		glog.Info("sdbd: kill command received, shutting down")
		return nil
	case runErr := <-runErr:
		return fmt.Errorf("sdbd: event core exited: %w", runErr)
	}
}

// cancelOnSignals returns a context that is canceled the first time one of
// sigs arrives, adapted from the monorepo's command.CancelOnSignals to this
// daemon's single-signal, single-shutdown-path use.
func cancelOnSignals(ctx context.Context, sigs ...os.Signal) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		<-ch
		cancel()
	}()
	return ctx
}
