package webui

import (
	"html/template"
	"time"
)

// Templates contains all HTML templates for the web UI
var Templates = template.Must(template.New("").Funcs(template.FuncMap{
	"levelClass": func(level string) string {
		switch level {
		case "error", "fatal":
			return "log-error"
		case "warn":
			return "log-warn"
		case "debug":
			return "log-debug"
		default:
			return "log-info"
		}
	},
	"statusClass": func(status string) string {
		switch status {
		case "healthy", "good", "inactive", "low":
			return "ok"
		case "degraded", "testing", "medium", "acknowledged":
			return "warn"
		default:
			return "bad"
		}
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return FormatDuration(time.Since(t)) + " ago"
	},
	"clock": func(t time.Time) string {
		return t.Format("15:04:05")
	},
}).Parse(`
{{define "dashboard"}}
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>OpsGuard</title>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --border-color: #30363d;
            --text-primary: #e6edf3;
            --text-secondary: #8b949e;
            --accent-green: #3fb950;
            --accent-red: #f85149;
            --accent-yellow: #d29922;
            --accent-blue: #58a6ff;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
        }
        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }
        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 2rem;
            padding-bottom: 1.5rem;
            border-bottom: 1px solid var(--border-color);
        }
        h1 { font-size: 1.75rem; font-weight: 600; }
        h2 { font-size: 1.1rem; margin-bottom: 0.75rem; color: var(--text-secondary); }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(320px, 1fr)); gap: 1.5rem; }
        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 12px;
            padding: 1.25rem;
        }
        .score { font-size: 3rem; font-weight: 700; }
        .ok { color: var(--accent-green); }
        .warn { color: var(--accent-yellow); }
        .bad { color: var(--accent-red); }
        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        td, th { text-align: left; padding: 0.35rem 0.5rem; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-secondary); font-weight: 500; }
        .logs { font-family: monospace; font-size: 0.8rem; max-height: 320px; overflow-y: auto; }
        .log-error { color: var(--accent-red); }
        .log-warn { color: var(--accent-yellow); }
        .log-debug { color: var(--text-secondary); }
        .log-info { color: var(--text-primary); }
        .muted { color: var(--text-secondary); font-size: 0.85rem; }
    </style>
</head>
<body>
<div class="container">
    <header>
        <h1>OpsGuard</h1>
        <div class="muted">{{.Version}} ({{.Commit}}) &middot; up {{.Uptime}}</div>
    </header>

    <div class="grid">
        <div class="card">
            <h2>System health</h2>
            <div class="score {{statusClass .Snapshot.Status}}">{{printf "%.0f" .Snapshot.Score}}</div>
            <div class="{{statusClass .Snapshot.Status}}">{{.Snapshot.Status}}</div>
            <p class="muted">
                {{.Snapshot.Alerts.Active}} active &middot;
                {{.Snapshot.Alerts.Acknowledged}} acknowledged &middot;
                {{.Snapshot.Alerts.Escalated}} escalated &middot;
                {{.Snapshot.ConnectedCount}}/{{.Snapshot.ModuleCount}} modules connected
            </p>
        </div>

        <div class="card">
            <h2>Emergency protocols</h2>
            <table>
                <tr><th>Protocol</th><th>Status</th><th>Steps</th></tr>
                {{range .Protocols}}
                <tr>
                    <td>{{.Name}}</td>
                    <td class="{{statusClass (print .Status)}}">{{.Status}}</td>
                    <td>{{.CompletedSteps}}/{{len .Steps}}</td>
                </tr>
                {{end}}
            </table>
        </div>

        <div class="card">
            <h2>Modules</h2>
            <table>
                <tr><th>Module</th><th>Quality</th><th>Last heartbeat</th></tr>
                {{range .Snapshot.Modules}}
                <tr>
                    <td>{{.ModuleID}}{{if .Flapping}} <span class="warn">flapping</span>{{end}}</td>
                    <td class="{{statusClass (print .Classification)}}">{{.Classification}}</td>
                    <td>{{ago .LastHeartbeat}}</td>
                </tr>
                {{else}}
                <tr><td colspan="3" class="muted">No modules registered</td></tr>
                {{end}}
            </table>
        </div>
    </div>

    <div class="card" style="margin-top: 1.5rem">
        <h2>Unresolved alerts</h2>
        <table>
            <tr><th>Severity</th><th>Kind</th><th>Title</th><th>Source</th><th>Status</th><th>Level</th><th>Age</th></tr>
            {{range .Alerts}}
            <tr>
                <td class="{{statusClass (print .Severity)}}">{{.Severity}}</td>
                <td>{{.Kind}}</td>
                <td>{{.Title}}</td>
                <td>{{.Source}}</td>
                <td class="{{statusClass (print .Status)}}">{{.Status}}</td>
                <td>{{.EscalationLevel}}</td>
                <td>{{ago .CreatedAt}}</td>
            </tr>
            {{else}}
            <tr><td colspan="7" class="muted">No unresolved alerts</td></tr>
            {{end}}
        </table>
    </div>

    <div class="card" style="margin-top: 1.5rem">
        <h2>Recent logs</h2>
        <div class="logs" id="logs">
            {{range .Logs}}
            <div class="{{levelClass .Level}}">{{clock .Timestamp}} [{{.Level}}] {{if .Component}}{{.Component}}: {{end}}{{.Message}}</div>
            {{end}}
        </div>
    </div>
</div>
<script>
    const logs = document.getElementById('logs');
    const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/events');
    ws.onmessage = (msg) => {
        const evt = JSON.parse(msg.data);
        const line = document.createElement('div');
        line.className = 'log-info';
        line.textContent = new Date(evt.timestamp).toLocaleTimeString() + ' [' + evt.type + '] ' + evt.summary;
        logs.appendChild(line);
        logs.scrollTop = logs.scrollHeight;
    };
    setInterval(() => location.reload(), 30000);
</script>
</body>
</html>
{{end}}
`))

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return d.String()
	case d < time.Hour:
		return (d / time.Minute * time.Minute).String()
	default:
		h := d / time.Hour
		m := (d - h*time.Hour) / time.Minute
		return (h*time.Hour + m*time.Minute).String()
	}
}
