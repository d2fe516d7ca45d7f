package console

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// Routes mounts the console page at base+"/" and the socket at base+"/ws".
func (m *Manager) Routes(mux *http.ServeMux, base string) {
	base = strings.TrimRight(base, "/")
	mux.HandleFunc(base+"/ws", m.HandleWebSocket)
	mux.Handle(base+"/", templ.Handler(Page(base+"/ws")))
}

// Page renders the console shell. Reports arrive over the socket at wsPath
// and are prepended newest first.
func Page(wsPath string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>kbdebug console</title>
<style>
body { font-family: sans-serif; margin: 1em; }
.kb_console_entry { border-top: solid 2px #333; margin-top: 1em; }
.kb_console_meta { font-family: monospace; color: #555; }
</style>
</head>
<body>
<h1>kbdebug console</h1>
<div id="kb_console_status">connecting</div>
<div id="kb_console" data-ws="`+templ.EscapeString(wsPath)+`"></div>
<script type="text/javascript">
(function () {
  var root = document.getElementById("kb_console");
  var status = document.getElementById("kb_console_status");
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(scheme + location.host + root.dataset.ws);
  ws.onopen = function () { status.textContent = "connected"; };
  ws.onclose = function () { status.textContent = "disconnected"; };
  ws.onmessage = function (e) {
    var msg = JSON.parse(e.data);
    if (msg.type !== "report") { return; }
    var entry = document.createElement("div");
    entry.className = "kb_console_entry";
    var meta = document.createElement("div");
    meta.className = "kb_console_meta";
    meta.textContent = msg.timestamp + " " + msg.path + " " + msg.request_id;
    var body = document.createElement("div");
    body.innerHTML = msg.content;
    entry.appendChild(meta);
    entry.appendChild(body);
    root.insertBefore(entry, root.firstChild);
  };
})();
</script>
</body>
</html>
`)
		return err
	})
}
