package server

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ReloadScriptPath is where the reload client is served.
const ReloadScriptPath = "/__blockpipe/reload.js"

var reloadTag = []byte(`<script src="` + ReloadScriptPath + `"></script>`)

// InjectReloadScript copies the HTML document from r and inserts the reload
// script tag before the closing body tag. Documents without one get the tag
// appended. The rest of the markup is copied byte for byte.
func InjectReloadScript(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	z := html.NewTokenizer(r)
	injected := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			break
		}

		// TagName lowercases in place, so keep the raw bytes first.
		raw := append([]byte(nil), z.Raw()...)
		if !injected && tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(bytes.ToLower(name)) == atom.Body {
				out.Write(reloadTag)
				injected = true
			}
		}
		out.Write(raw)
	}

	if !injected {
		out.Write(reloadTag)
	}
	return out.Bytes(), nil
}

const reloadScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var url = proto + location.host + "/__blockpipe/ws";
  function refreshCSS() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = links[i].href.replace(/[?&]_bp=\d+/, "");
      links[i].href = href + (href.indexOf("?") < 0 ? "?" : "&") + "_bp=" + Date.now();
    }
  }
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "css") { refreshCSS(); } else if (msg.type === "reload") { location.reload(); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
`
