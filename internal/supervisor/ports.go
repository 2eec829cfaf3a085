package supervisor

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// DefaultHost is the loopback name the backend binds and the window loads.
const DefaultHost = "localhost"

// Endpoint is the (host, port) pair chosen once per launch.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns host:port.
func (e Endpoint) Addr() string { return net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) }

// URL returns http://host:port.
func (e Endpoint) URL() string {
	u := url.URL{Scheme: "http", Host: e.Addr()}
	return u.String()
}

func (e Endpoint) IsZero() bool { return e.Port == 0 }

// AcquireEndpoint scans [start, end] for the first port on host with no listener.
// A zero range asks the kernel for any free port instead.
// The port is released before returning; another process may take it before the
// backend binds.
func AcquireEndpoint(host string, start, end int) (Endpoint, error) {
	if host == "" {
		host = DefaultHost
	}
	if start == 0 && end == 0 {
		p, err := pickFreePort(host)
		if err != nil {
			return Endpoint{}, err
		}
		return Endpoint{Host: host, Port: p}, nil
	}
	if start <= 0 || end < start || end > 65535 {
		return Endpoint{}, fmt.Errorf("invalid port range %d-%d", start, end)
	}
	p, err := pickPortInRange(host, start, end)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Host: host, Port: p}, nil
}

func pickPortInRange(host string, start, end int) (int, error) {
	addrs := bindAddrs(host)
	for p := start; p <= end; p++ {
		if portFree(addrs, p) {
			return p, nil
		}
	}
	return 0, allPortsBusyError{host: host, start: start, end: end}
}

// bindAddrs returns the addresses host resolves to that this machine can bind.
// "localhost" usually yields both 127.0.0.1 and ::1, and a backend may listen on
// either, so a port counts as free only when it is free on all of them.
func bindAddrs(host string) []string {
	resolved, err := net.LookupHost(host)
	if err != nil || len(resolved) == 0 {
		return []string{host}
	}
	var usable []string
	for _, a := range resolved {
		l, err := net.Listen("tcp", net.JoinHostPort(a, "0"))
		if err != nil {
			continue
		}
		_ = l.Close()
		usable = append(usable, a)
	}
	if len(usable) == 0 {
		return []string{host}
	}
	return usable
}

func portFree(addrs []string, port int) bool {
	held := make([]net.Listener, 0, len(addrs))
	defer func() {
		for _, l := range held {
			_ = l.Close()
		}
	}()
	for _, a := range addrs {
		l, err := net.Listen("tcp", net.JoinHostPort(a, strconv.Itoa(port)))
		if err != nil {
			return false
		}
		held = append(held, l)
	}
	return true
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return addr.Port, nil
}
