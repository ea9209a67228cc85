// Command unet-echo runs the stack over a Linux TAP device and echoes
// back everything written to any connection accepted on -port, serving
// Prometheus metrics on -metrics-addr.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/behrlich/unet"
	"github.com/behrlich/unet/device"
	"github.com/behrlich/unet/internal/ipv4"
	"github.com/behrlich/unet/internal/logging"
	"github.com/behrlich/unet/internal/tcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	tapName := flag.String("tap", "unet0", "TAP interface name (must already exist and be up)")
	addrFlag := flag.String("addr", "10.0.2.15", "IPv4 address to bind, dotted-quad")
	macFlag := flag.String("mac", "02:00:00:00:00:01", "MAC address to present, colon-separated hex")
	port := flag.Uint("port", 7, "TCP port to echo on")
	metricsAddr := flag.String("metrics-addr", ":9100", "address to serve /metrics on")
	flag.Parse()

	log := logging.Default()

	mac, err := parseMAC(*macFlag)
	if err != nil {
		log.Errorf("unet-echo: %v", err)
		os.Exit(1)
	}
	addr, err := parseIPv4(*addrFlag)
	if err != nil {
		log.Errorf("unet-echo: %v", err)
		os.Exit(1)
	}

	nic, err := device.OpenTAP(*tapName, mac, 1500)
	if err != nil {
		log.Errorf("unet-echo: open tap %s: %v", *tapName, err)
		os.Exit(1)
	}

	cfg := unet.DefaultConfig()
	cfg.MAC = mac
	cfg.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack, err := unet.New(ctx, cfg, nic)
	if err != nil {
		log.Errorf("unet-echo: %v", err)
		os.Exit(1)
	}
	defer stack.Close()

	_, err = stack.Listen(uint16(*port), 16, func(conn *tcp.Connection) tcp.Handlers {
		log.Infof("unet-echo: accepted %+v", conn.Flow())
		return tcp.Handlers{
			OnRead: func(data []byte) {
				echoed := append([]byte(nil), data...)
				_ = conn.Write(echoed, nil)
			},
			OnDisconnect: func(reason error) {
				log.Infof("unet-echo: disconnected %+v: %v", conn.Flow(), reason)
			},
		}
	})
	if err != nil {
		log.Errorf("unet-echo: listen on port %d: %v", *port, err)
		os.Exit(1)
	}

	if m := stack.Metrics(); m != nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(unet.NewCollector(m))
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Errorf("unet-echo: metrics server: %v", err)
			}
		}()
	}

	log.Infof("unet-echo: listening on %s:%d over %s", addr, *port, *tapName)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func parseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	n, err := fmt.Sscanf(s, "%02x:%02x:%02x:%02x:%02x:%02x",
		&mac[0], &mac[1], &mac[2], &mac[3], &mac[4], &mac[5])
	if err != nil || n != 6 {
		return mac, fmt.Errorf("invalid MAC address %q", s)
	}
	return mac, nil
}

func parseIPv4(s string) (ipv4.Addr, error) {
	var addr ipv4.Addr
	n, err := fmt.Sscanf(s, "%d.%d.%d.%d", &addr[0], &addr[1], &addr[2], &addr[3])
	if err != nil || n != 4 {
		return addr, fmt.Errorf("invalid IPv4 address %q", s)
	}
	return addr, nil
}
