package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/ferry/internal/utils"
)

type TransferOutput struct {
	ID          uint32
	Kind        string
	Label       string
	Status      string
	Message     string
	Done        uint64
	Total       uint64
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
	Index       int
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

type Manager struct {
	out         io.Writer
	outputs     map[uint32]*TransferOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	count       int
	displayWg   sync.WaitGroup
	interactive bool
}

// NewManager renders to out. When interactive is false only the final
// summary is printed.
func NewManager(out io.Writer, interactive bool) *Manager {
	return &Manager{
		out:         out,
		outputs:     make(map[uint32]*TransferOutput),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
		interactive: interactive,
	}
}

func (m *Manager) Register(id uint32, kind, label string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.count++
	now := time.Now()
	m.outputs[id] = &TransferOutput{
		ID:          id,
		Kind:        kind,
		Label:       label,
		Status:      "pending",
		StartTime:   now,
		LastUpdated: now,
		Index:       m.count,
	}
}

func (m *Manager) SetMessage(id uint32, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Message = message
		info.Status = "running"
		info.LastUpdated = time.Now()
	}
}

// AddProgress folds one progress delta into the running count.
func (m *Manager) AddProgress(id uint32, delta, total uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Done += delta
		info.Total = total
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id uint32, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.Label)
		}
		info.Message = message
		info.Complete = true
		info.Status = "success"
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(id uint32, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.Label)
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{
			Label: info.Label,
			Error: err,
			Time:  time.Now(),
		})
	}
}

func (m *Manager) Get(id uint32) (TransferOutput, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[id]; exists {
		return *info, true
	}
	return TransferOutput{}, false
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["arrow"])
	}
}

func (m *Manager) sorted() []*TransferOutput {
	all := make([]*TransferOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})
	return all
}

func (m *Manager) styledMessage(info *TransferOutput) string {
	switch info.Status {
	case "success":
		return successStyle.Render(info.Message)
	case "error":
		return errorStyle.Render(info.Message)
	case "pending":
		return pendingStyle.Render("Waiting...")
	default:
		return pendingStyle.Render(info.Message)
	}
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	availableLines := getTerminalHeight() - 3
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	lineCount := 0
	indent := strings.Repeat(" ", 2)
	for _, info := range m.sorted() {
		if lineCount >= availableLines {
			break
		}
		elapsed := time.Since(info.StartTime).Round(time.Second)
		if info.Complete {
			elapsed = info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		}
		fmt.Fprintf(m.out, "%s%s %s %s\n", indent, m.GetStatusIndicator(info.Status), debugStyle.Render(elapsed.String()), m.styledMessage(info))
		lineCount++
		if info.Complete || info.Status == "pending" || lineCount >= availableLines {
			continue
		}
		bar := ProgressBar(info.Done, info.Total, 30)
		speed := utils.FormatSpeed(info.Done, time.Since(info.StartTime).Seconds())
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), streamStyle.Render(bar+StyleSymbols["bullet"]+" "+speed))
		lineCount++
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	if !m.interactive {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

// StopDisplay renders the final state and prints the summary.
func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	m.ShowSummary()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, report := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
			errorStyle.Render(report.Label))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, failures int
	var moved uint64
	for _, info := range m.outputs {
		moved += info.Done
		switch info.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d (%s moved)", success, len(m.outputs), utils.FormatBytes(moved))))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
