package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-io/mqttsn/mqttsn"
	"github.com/golang-io/mqttsn/pkt"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	engine, err := mqttsn.New(
		mqttsn.GatewayAddr("127.0.0.1:1884"),
		mqttsn.ClientID("mqttsn-client"),
		mqttsn.KeepAlive(60),
		mqttsn.WithCallbacks(mqttsn.Callbacks{
			OnConnected: func() {
				log.Printf("connected")
			},
			OnMessage: func(topicName string, data []byte, qos pkt.QoS) {
				log.Printf("on: topic=%s qos=%d payload=%s", topicName, qos, data)
			},
			OnDisconnected: func(err error) {
				log.Printf("disconnected: %v", err)
			},
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	go func() {
		if err := engine.Metrics().Serve(":9400"); err != nil {
			log.Printf("metrics: %v", err)
		}
	}()

	if err := engine.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	if _, err := engine.Subscribe("a/b/c", pkt.QoS1); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		// Poll and Publish both drive the engine's cooperative core, so
		// they share this one goroutine: Publish blocks on its own
		// internal Poll calls for QoS1/2, and interleaving it with a
		// second goroutine calling Poll on the same Engine would race.
		pollTick := time.NewTicker(20 * time.Millisecond)
		defer pollTick.Stop()
		pubTick := time.NewTicker(time.Second)
		defer pubTick.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pollTick.C:
				if err := engine.Poll(); err != nil {
					return err
				}
			case <-pubTick.C:
				payload := []byte(time.Now().Format("2006-01-02 15:04:05"))
				if err := engine.Publish("a/b/c", payload, pkt.QoS1); err != nil {
					log.Printf("publish: %v", err)
				}
			}
		}
	})

	group.Go(func() error {
		defer cancel()
		ignore := make(chan os.Signal, 1)
		sign := make(chan os.Signal, 1)

		signal.Notify(ignore, syscall.SIGHUP)
		signal.Notify(sign, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sign:
			return fmt.Errorf("got sign: %s", sig)
		}
	})

	if err := group.Wait(); err != nil {
		log.Printf("exiting: %v", err)
	}
	_ = engine.Disconnect()
}
