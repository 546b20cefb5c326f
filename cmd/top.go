package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

const sparkWidth = 120

type snapshot struct {
	Stats  model.HubStats
	Health map[string]string
	Err    error
}

func topCmd() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Live terminal view of a running instance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "http://127.0.0.1:8080",
				Usage: "Base URL of the instance HTTP listener",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: time.Second,
				Usage: "Refresh interval",
			},
		},
		Action: func(c *cli.Context) error {
			return runTop(c.Context, strings.TrimRight(c.String("addr"), "/"), c.Duration("interval"))
		},
	}
}

// poll fetches /stats and /healthz concurrently.
func poll(ctx context.Context, client *http.Client, base string) snapshot {
	var snap snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return getJSON(ctx, client, base+"/stats", &snap.Stats)
	})
	g.Go(func() error {
		// /healthz answers 503 with a body when degraded
		_ = getJSON(ctx, client, base+"/healthz", &snap.Health)
		return nil
	})
	snap.Err = g.Wait()

	return snap
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return nil
}

func runTop(ctx context.Context, base string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("top: init terminal: %w", err)
	}
	defer ui.Close()

	summary := widgets.NewParagraph()
	summary.Title = " " + base + " "

	conns := widgets.NewSparkline()
	conns.LineColor = ui.ColorGreen
	conns.Title = "connections"
	spark := widgets.NewSparklineGroup(conns)
	spark.Title = " load "

	users := widgets.NewTable()
	users.Title = " users "
	users.RowSeparator = false
	users.TextStyle = ui.NewStyle(ui.ColorWhite)

	layout := func() {
		w, h := ui.TerminalDimensions()
		summary.SetRect(0, 0, w, 7)
		spark.SetRect(0, 7, w, 14)
		users.SetRect(0, 14, w, h)
	}
	layout()

	client := &http.Client{Timeout: interval}
	render := func() {
		snap := poll(ctx, client, base)
		summary.Text = describe(snap)

		conns.Data = append(conns.Data, float64(snap.Stats.TotalConnections))
		if len(conns.Data) > sparkWidth {
			conns.Data = conns.Data[len(conns.Data)-sparkWidth:]
		}

		rows := [][]string{{"user", "connections", "dropped"}}
		for _, u := range snap.Stats.Users {
			rows = append(rows, []string{u.UserID, fmt.Sprint(u.Connections), fmt.Sprint(u.Dropped)})
		}
		users.Rows = rows

		ui.Render(summary, spark, users)
	}
	render()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				layout()
				ui.Clear()
				ui.Render(summary, spark, users)
			}
		case <-ticker.C:
			render()
		}
	}
}

func describe(s snapshot) string {
	if s.Err != nil {
		return fmt.Sprintf("[unreachable](fg:red): %v\n\npress q to quit", s.Err)
	}

	status := s.Health["status"]
	color := "green"
	if status != "ok" {
		color = "yellow"
	}

	return fmt.Sprintf("status [%s](fg:%s)  version %s  uptime %s\nusers %d  connections %d  dropped %d\n\npress q to quit",
		status, color, s.Health["version"], s.Stats.Uptime.Truncate(time.Second),
		s.Stats.TotalUsers, s.Stats.TotalConnections, s.Stats.DroppedEvents)
}
