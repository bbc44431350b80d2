package realtime_test

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"hothour-sync/internal/realtime"
	"hothour-sync/pkg/apierror"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Channel", func() {
	var server *fakeServer
	var channel *realtime.Channel

	newChannel := func(attempts int) *realtime.Channel {
		return realtime.NewChannel(realtime.Config{
			URL:               server.URL(),
			ReconnectAttempts: attempts,
			ReconnectDelay:    30 * time.Millisecond,
			WriteTimeout:      time.Second,
		})
	}

	BeforeEach(func() {
		server = newFakeServer()
		channel = newChannel(5)
	})

	AfterEach(func() {
		_ = channel.Close()
		server.close()
	})

	Describe("connecting", func() {
		It("establishes one connection and is idempotent while connected", func() {
			Expect(channel.Connect()).To(Succeed())
			Eventually(channel.State).Should(Equal(realtime.StateConnected))

			Expect(channel.Connect()).To(Succeed())
			Consistently(server.connectCount, 200*time.Millisecond).Should(Equal(1))
		})

		It("fires connect callbacks on the initial connect", func() {
			var connects int32
			channel.OnConnect(func() { atomic.AddInt32(&connects, 1) })

			Expect(channel.Connect()).To(Succeed())
			Eventually(func() int32 { return atomic.LoadInt32(&connects) }).Should(Equal(int32(1)))
		})
	})

	Describe("event delivery", func() {
		It("relays subscribed room events to registered listeners in order", func() {
			received := make(chan json.RawMessage, 10)
			channel.On(realtime.EventPriceUpdate, func(data json.RawMessage) {
				received <- data
			})

			Expect(channel.Connect()).To(Succeed())
			Eventually(channel.State).Should(Equal(realtime.StateConnected))

			Expect(channel.SubscribeAuction(1)).To(Succeed())
			Eventually(func() int { return server.subscribedCount("auction:1") }).Should(Equal(1))

			for _, price := range []string{"450.00", "440.00", "430.00"} {
				server.broadcast("auction:1", realtime.EventPriceUpdate,
					map[string]interface{}{"auction_id": 1, "current_price": price})
			}

			var prices []string
			for i := 0; i < 3; i++ {
				var data json.RawMessage
				Eventually(received).Should(Receive(&data))
				var payload struct {
					CurrentPrice string `json:"current_price"`
				}
				Expect(json.Unmarshal(data, &payload)).To(Succeed())
				prices = append(prices, payload.CurrentPrice)
			}
			Expect(prices).To(Equal([]string{"450.00", "440.00", "430.00"}))
		})

		It("does not deliver events for rooms it never joined", func() {
			received := make(chan json.RawMessage, 1)
			channel.On(realtime.EventPriceUpdate, func(data json.RawMessage) {
				received <- data
			})

			Expect(channel.Connect()).To(Succeed())
			Eventually(channel.State).Should(Equal(realtime.StateConnected))

			server.broadcast("auction:1", realtime.EventPriceUpdate,
				map[string]interface{}{"auction_id": 1, "current_price": "450.00"})
			Consistently(received, 200*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("reconnection", func() {
		It("reconnects after a dropped connection and fires connect callbacks again", func() {
			var connects int32
			channel.OnConnect(func() { atomic.AddInt32(&connects, 1) })

			Expect(channel.Connect()).To(Succeed())
			Eventually(func() int32 { return atomic.LoadInt32(&connects) }).Should(Equal(int32(1)))

			server.dropConnections()

			Eventually(func() int32 { return atomic.LoadInt32(&connects) }, time.Second).Should(Equal(int32(2)))
			Expect(server.connectCount()).To(Equal(2))
		})

		It("loses room subscriptions across a reconnect until the subscriber re-issues them", func() {
			received := make(chan json.RawMessage, 10)
			channel.On(realtime.EventPriceUpdate, func(data json.RawMessage) {
				received <- data
			})

			Expect(channel.Connect()).To(Succeed())
			Eventually(channel.State).Should(Equal(realtime.StateConnected))
			Expect(channel.SubscribeAuction(1)).To(Succeed())
			Eventually(func() int { return server.subscribedCount("auction:1") }).Should(Equal(1))

			server.dropConnections()
			Eventually(server.connectCount, time.Second).Should(Equal(2))
			Eventually(channel.State).Should(Equal(realtime.StateConnected))

			// The new connection joined no rooms: the broadcast must
			// not reach us. No automatic resume exists.
			Expect(server.subscribedCount("auction:1")).To(BeZero())
			server.broadcast("auction:1", realtime.EventPriceUpdate,
				map[string]interface{}{"auction_id": 1, "current_price": "420.00"})
			Consistently(received, 200*time.Millisecond).ShouldNot(Receive())

			// Re-issuing the subscribe restores delivery.
			Expect(channel.SubscribeAuction(1)).To(Succeed())
			Eventually(func() int { return server.subscribedCount("auction:1") }).Should(Equal(1))
			server.broadcast("auction:1", realtime.EventPriceUpdate,
				map[string]interface{}{"auction_id": 1, "current_price": "410.00"})
			Eventually(received).Should(Receive())
		})

		It("gives up after the bounded retry budget and reports permanent disconnection", func() {
			channel = newChannel(3)
			Expect(channel.Connect()).To(Succeed())
			Eventually(channel.State).Should(Equal(realtime.StateConnected))

			server.close()

			Eventually(channel.State, 2*time.Second).Should(Equal(realtime.StateDisconnected))
			Consistently(channel.State, 200*time.Millisecond).Should(Equal(realtime.StateDisconnected))
		})
	})

	Describe("sending while disconnected", func() {
		It("returns the transport-disconnected error kind", func() {
			err := channel.SubscribeAuction(1)
			Expect(apierror.IsKind(err, apierror.KindTransportDisconnected)).To(BeTrue())
		})
	})
})
