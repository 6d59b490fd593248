package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"zoneOrUnknown": func(z logic.Zone) string {
		if z == "" {
			return "UNKNOWN"
		}
		return string(z)
	},
	"hex": hexColor,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Parking Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.CRITICAL { color: red; font-weight: bold; }
.NEAR { color: darkorange; font-weight: bold; }
.FAR { color: green; }
.CLEAR, .UNKNOWN { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.led { display: inline-block; width: 18px; height: 18px; border-radius: 50%; margin-right: 4px; border: 1px solid #ccc; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Parking Sensor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Zone</th><td id="zone" class="{{zoneOrUnknown .Zone}}">{{zoneOrUnknown .Zone}}</td></tr>
<tr><th>Distance</th><td id="distance">{{.Distance}}</td></tr>
<tr><th>Strip</th><td>{{range .LEDs}}<span class="led" style="background: {{hex .}}"></span>{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Clear</th><td>{{.Counts.Clear}}</td></tr>
<tr><th>Far</th><td>{{.Counts.Far}}</td></tr>
<tr><th>Near</th><td>{{.Counts.Near}}</td></tr>
<tr><th>Critical</th><td>{{.Counts.Critical}}</td></tr>
</table>

<h2>Sensor</h2>
<table>
<tr><th>State</th><td>{{.Sensor.State}}</td></tr>
<tr><th>Measurements</th><td>{{.Sensor.Cycles}}</td></tr>
<tr><th>Timeouts</th><td>{{.Sensor.Timeouts}}</td></tr>
<tr><th>Pin errors</th><td>{{.Sensor.ReadErrors}} read / {{.Sensor.WriteErrors}} write</td></tr>
<tr><th>Frames</th><td>{{.Display.Rendered}} written / {{.Display.Skipped}} skipped / {{.Display.RenderErrors}} failed</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ticks</th><td>{{.Config.IdleTickMs}}ms idle / {{.Config.EchoTickUs}}us echo</td></tr>
<tr><th>Trigger</th><td>every {{.Config.TriggerEvery}} idle ticks, timeout {{.Config.EchoTimeout}} echo ticks</td></tr>
<tr><th>LEDs</th><td>{{.Config.LEDs}} @ {{.Config.Brightness}}%</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "parking/sensor/events";
  var dot = document.getElementById("live-dot");
  var zoneEl = document.getElementById("zone");
  var distEl = document.getElementById("distance");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.parking) {
        zoneEl.textContent = msg.parking.zone;
        zoneEl.className = msg.parking.zone;
        distEl.textContent = msg.parking.distance_cm === undefined ? "no-echo" : msg.parking.distance_cm + "cm";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

// stripPreview renders the steady (non-flickering) strip for the snapshot's
// distance so the page shows what the driver sees.
func stripPreview(snap status.Snapshot) [][3]uint8 {
	n := snap.Config.LEDs
	if n <= 0 {
		return nil
	}
	f := logic.Map(snap.Distance, true, n, logic.DefaultPalette())
	leds := make([][3]uint8, n)
	for i := 0; i < f.Active; i++ {
		leds[i] = [3]uint8{f.Color.R, f.Color.G, f.Color.B}
	}
	return leds
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		LEDs   [][3]uint8
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		LEDs:     stripPreview(snap),
	}
	indexTmpl.Execute(w, data)
}
