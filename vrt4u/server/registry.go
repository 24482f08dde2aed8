/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/pluto-sdr/vrt4u/vrt4u/stats"
)

// Subscriber is a destination endpoint. Once added it remains active for
// the process lifetime; there is no removal operation.
type Subscriber struct {
	IP     net.IP
	Port   int
	Active bool

	addr *net.UDPAddr
}

// Registry is the capacity-bounded (<=MaxSubscribers), insertion-ordered
// subscriber set. Add and Broadcast are mutually exclusive: Broadcast
// holds the guard for the full fan-out so enrolment cannot interleave
// with an in-flight send.
type Registry struct {
	mu          sync.Mutex
	subscribers []*Subscriber
}

// NewRegistry builds an empty subscriber registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add enrolls (ip, port) as a subscriber. It is idempotent on the
// (address, port) pair and silently drops the request if the registry is
// already at capacity. Returns true if a new subscriber was added.
func (r *Registry) Add(ip net.IP, port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subscribers {
		if s.IP.Equal(ip) && s.Port == port {
			return false
		}
	}
	if len(r.subscribers) >= MaxSubscribers {
		log.Warnf("subscriber table full, dropping enrolment of %s:%d", ip, port)
		return false
	}

	r.subscribers = append(r.subscribers, &Subscriber{
		IP:     ip,
		Port:   port,
		Active: true,
		addr:   &net.UDPAddr{IP: ip, Port: port},
	})
	return true
}

// Len returns the current subscriber count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// Broadcast sends payload to every active subscriber over conn, in
// insertion order. A failed send is logged and counted but does not
// remove the subscriber.
func (r *Registry) Broadcast(conn *net.UDPConn, payload []byte, st stats.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subscribers {
		if !s.Active {
			continue
		}
		if _, err := conn.WriteToUDP(payload, s.addr); err != nil {
			log.Warnf("send to subscriber %s:%d failed: %v", s.IP, s.Port, err)
			st.IncSendFailures()
			continue
		}
		st.AddBytesSent(uint64(len(payload)))
	}
}
