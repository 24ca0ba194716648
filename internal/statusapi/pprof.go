package statusapi

import (
	hpprof "net/http/pprof"
	"runtime/pprof"

	"github.com/gin-gonic/gin"
)

// mountPprof exposes the runtime profiles. The status listener should stay
// on loopback when this is enabled.
func mountPprof(g *gin.RouterGroup) {
	g.GET("/", gin.WrapF(hpprof.Index))
	g.GET("/cmdline", gin.WrapF(hpprof.Cmdline))
	g.GET("/profile", gin.WrapF(hpprof.Profile))
	g.GET("/symbol", gin.WrapF(hpprof.Symbol))
	g.POST("/symbol", gin.WrapF(hpprof.Symbol))
	g.GET("/trace", gin.WrapF(hpprof.Trace))
	for _, p := range pprof.Profiles() {
		g.GET("/"+p.Name(), gin.WrapH(hpprof.Handler(p.Name())))
	}
}
