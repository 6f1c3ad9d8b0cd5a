package daemon

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/config"
	"github.com/charlie0129/droidbatt/pkg/deviceinfo"
	"github.com/charlie0129/droidbatt/pkg/version"
)

// ErrorResponse is returned in place of a snapshot that could not be
// composed. The status code stays 200.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) getTheme(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.telemetry.Theme(c.Request.Context()))
}

func (s *Server) getBattery(c *gin.Context) {
	snap, err := s.telemetry.BatterySnapshot(c.Request.Context())
	if err != nil {
		logrus.Errorf("getBattery failed: %v", err)
		c.IndentedJSON(http.StatusOK, ErrorResponse{Error: err.Error()})
		return
	}

	c.IndentedJSON(http.StatusOK, snap)
}

func (s *Server) getDebugInfo(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.telemetry.DebugInfo(c.Request.Context()))
}

func (s *Server) getRootStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.telemetry.RootStatus())
}

// requestElevation queues an elevation probe and answers 202 right away.
// With ?wait=true it answers with the resulting status instead.
func (s *Server) requestElevation(c *gin.Context) {
	task := s.telemetry.RequestElevation()

	wait, _ := strconv.ParseBool(c.Query("wait"))
	if !wait {
		c.IndentedJSON(http.StatusAccepted, "ok")
		return
	}

	status, err := task.Wait(c.Request.Context())
	if err != nil {
		logrus.Warnf("requestElevation: stopped waiting: %v", err)
		c.IndentedJSON(http.StatusGatewayTimeout, err.Error())
		_ = c.AbortWithError(http.StatusGatewayTimeout, err)
		return
	}

	c.IndentedJSON(http.StatusOK, status)
}

func (s *Server) getSELinux(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, deviceinfo.SELinux(c.Request.Context(), s.runner))
}

func (s *Server) getSELinuxReport(c *gin.Context) {
	privileged := s.telemetry.RootStatus().Usable()
	c.IndentedJSON(http.StatusOK, deviceinfo.Report(c.Request.Context(), s.runner, s.conf.SuBinary(), privileged))
}

func (s *Server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.conf)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
