package server

import "embed"

//go:embed static/index.html
var staticEmbed embed.FS

var dashboardHTML []byte

func init() {
	var err error
	dashboardHTML, err = staticEmbed.ReadFile("static/index.html")
	if err != nil {
		panic("server: failed to read embedded dashboard HTML: " + err.Error())
	}
}
