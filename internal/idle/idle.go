// Package idle implements the host idleness probes the pre-download engine
// gates on: CPU load from /proc/loadavg and network
// throughput from /proc/net/dev.
package idle

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMaxCPULoad and DefaultMaxNetKBps mirror scheduler.py's
// max_cpu_load=0.5 and max_net_kbps=100 defaults.
const (
	DefaultMaxCPULoad = 0.5
	DefaultMaxNetKBps = 100.0
)

// Prober tracks the network-throughput baseline across calls
// §4.D: "the first call records a baseline and returns idle"). One Prober
// should be reused across the pre-download engine's lifetime, not
// recreated per run.
type Prober struct {
	LoadAvgPath string
	NetDevPath  string
	MaxCPULoad  float64
	MaxNetKBps  float64

	mu        sync.Mutex
	haveBase  bool
	baseBytes int64
	baseAt    time.Time
}

// New returns a Prober reading the standard /proc paths with default thresholds.
func New() *Prober {
	return &Prober{
		LoadAvgPath: "/proc/loadavg",
		NetDevPath:  "/proc/net/dev",
		MaxCPULoad:  DefaultMaxCPULoad,
		MaxNetKBps:  DefaultMaxNetKBps,
	}
}

// IsIdle reports whether the host is idle: both CPU and network predicates
// must hold. Each probe fails open to idle=true if its source file can't
// be read.
func (p *Prober) IsIdle(warn func(msg string)) bool {
	cpuIdle := p.cpuIdle(warn)
	netIdle := p.networkIdle(warn)
	return cpuIdle && netIdle
}

func (p *Prober) cpuIdle(warn func(string)) bool {
	path := p.LoadAvgPath
	if path == "" {
		path = "/proc/loadavg"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if warn != nil {
			warn("idle: read loadavg: " + err.Error())
		}
		return true
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		if warn != nil {
			warn("idle: empty loadavg")
		}
		return true
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		if warn != nil {
			warn("idle: parse loadavg: " + err.Error())
		}
		return true
	}
	max := p.MaxCPULoad
	if max == 0 {
		max = DefaultMaxCPULoad
	}
	return load < max
}

func (p *Prober) networkIdle(warn func(string)) bool {
	path := p.NetDevPath
	if path == "" {
		path = "/proc/net/dev"
	}
	total, err := sumNetDevBytes(path)
	if err != nil {
		if warn != nil {
			warn("idle: read net/dev: " + err.Error())
		}
		return true
	}

	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.haveBase {
		p.haveBase = true
		p.baseBytes = total
		p.baseAt = now
		return true
	}

	elapsed := now.Sub(p.baseAt)
	deltaBytes := total - p.baseBytes
	p.baseBytes = total
	p.baseAt = now

	if elapsed < time.Second {
		return true
	}

	rateKBps := float64(deltaBytes) / 1024.0 / elapsed.Seconds()
	max := p.MaxNetKBps
	if max == 0 {
		max = DefaultMaxNetKBps
	}
	return rateKBps < max
}

// sumNetDevBytes sums rx_bytes + tx_bytes across every interface in
// /proc/net/dev except loopback.
func sumNetDevBytes(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total int64
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= 2 {
			// First two lines are headers.
			continue
		}
		line := scanner.Text()
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		iface := strings.TrimSpace(line[:colon])
		if iface == "lo" {
			continue
		}
		fields := strings.Fields(line[colon+1:])
		if len(fields) < 9 {
			continue
		}
		rx, err1 := strconv.ParseInt(fields[0], 10, 64)
		tx, err2 := strconv.ParseInt(fields[8], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		total += rx + tx
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return total, nil
}
