// Package seed produces synthetic process-creation events for exercising
// a running pipeline.
package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

var (
	hostPrefixes = []string{"WS", "LAPTOP", "SRV", "DC", "KIOSK"}

	childProcesses = []string{
		`C:\Windows\System32\cmd.exe`,
		`C:\Windows\System32\WindowsPowerShell\v1.0\powershell.exe`,
		`C:\Windows\System32\notepad.exe`,
		`C:\Windows\System32\whoami.exe`,
		`C:\Windows\System32\net.exe`,
		`C:\Windows\System32\rundll32.exe`,
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Windows\System32\schtasks.exe`,
	}

	parentProcesses = []string{
		`C:\Windows\explorer.exe`,
		`C:\Windows\System32\services.exe`,
		`C:\Windows\System32\svchost.exe`,
		`C:\Windows\System32\cmd.exe`,
		`C:\Program Files\Microsoft Office\root\Office16\WINWORD.EXE`,
	}
)

// Generator builds events over a fixed pool of hosts.
type Generator struct {
	faker *gofakeit.Faker
	hosts []string
}

// New returns a generator with hostCount hosts. A zero seed is random.
func New(seed int64, hostCount int) *Generator {
	f := gofakeit.New(seed)
	hostCount = max(hostCount, 1)
	hosts := make([]string, hostCount)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("%s-%s", f.RandomString(hostPrefixes), strings.ToUpper(f.LetterN(2))+f.DigitN(3))
	}
	return &Generator{faker: f, hosts: hosts}
}

func (g *Generator) Hosts() []string { return g.hosts }

// Event returns a process-creation event observed at or shortly before now.
func (g *Generator) Event(now time.Time) models.SecurityEvent {
	host := g.faker.RandomString(g.hosts)
	child := g.faker.RandomString(childProcesses)
	parent := g.faker.RandomString(parentProcesses)
	observed := now.Add(-time.Duration(g.faker.Number(0, 3600)) * time.Second)
	return models.NewProcessCreation(host, child, parent, observed)
}

// Events returns n events.
func (g *Generator) Events(n int, now time.Time) []models.SecurityEvent {
	out := make([]models.SecurityEvent, 0, n)
	for range n {
		out = append(out, g.Event(now))
	}
	return out
}
