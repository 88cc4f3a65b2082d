package device

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"oakpipe/internal/logging"
)

// Monitor watches udev for removal of one device node.
type Monitor struct {
	logger   *slog.Logger
	node     string
	onRemove func(node string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	fired   bool
}

// NewMonitor returns a monitor for node. onRemove runs at most once.
func NewMonitor(logger *slog.Logger, node string, onRemove func(node string)) *Monitor {
	return &Monitor{
		logger:   logging.NewComponentLogger(logger, "hotplug"),
		node:     strings.TrimSpace(node),
		onRemove: onRemove,
	}
}

// Start connects to the udev netlink socket. Failing to connect is not fatal:
// disconnects are then detected through read failures only.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil || m.node == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket", "hotplug_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "device removal detected through read failures only"),
			logging.String(logging.FieldErrorHint, "run with permission to open netlink sockets or set camera.hotplug = false"),
		)
		return nil
	}
	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	go m.loop(ctx, conn, m.quit)

	m.logger.Debug("hotplug monitor started",
		logging.String("device", m.node),
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts the monitor down. Safe to call more than once.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, removalMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case ev := <-queue:
			m.handleEvent(ev)
		case err := <-errs:
			m.logger.Debug("netlink monitor error", logging.Error(err))
		}
	}
}

func removalMatcher() netlink.Matcher {
	action := string(netlink.REMOVE)
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{Action: &action})
	return rules
}

func (m *Monitor) handleEvent(ev netlink.UEvent) {
	if ev.Action != netlink.REMOVE || eventNode(ev) != m.node {
		return
	}
	m.mu.Lock()
	if m.fired {
		m.mu.Unlock()
		return
	}
	m.fired = true
	m.mu.Unlock()

	m.logger.Warn("device removed",
		logging.String("device", m.node),
		logging.String(logging.FieldEventType, "device_removed"),
		logging.String(logging.FieldImpact, "capture stops for this session"),
		logging.String(logging.FieldErrorHint, "reconnect the camera and restart the pipeline"),
	)
	if m.onRemove != nil {
		m.onRemove(m.node)
	}
}

func eventNode(ev netlink.UEvent) string {
	if name := ev.Env["DEVNAME"]; name != "" {
		if !strings.HasPrefix(name, "/") {
			name = "/dev/" + name
		}
		return name
	}
	devpath := ev.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
