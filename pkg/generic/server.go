package generic

import (
	"github.com/gin-gonic/gin"
	"net"
)

// Server is the listening side shared by the http and https modes.
type Server struct {
	Router *gin.Engine
	Port   string
}

// Addr listens on every interface, the panels reach the bridge over the plant lan.
func (s *Server) Addr() string {
	return net.JoinHostPort("", s.Port)
}
