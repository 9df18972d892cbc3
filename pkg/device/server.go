package device

import (
	"encoding/json"
	"github.com/gin-gonic/gin"
	"io"
	"k8s.io/klog/v2"
	"mime"
	"net/http"
	"scadabridge/pkg/apis"
	"scadabridge/pkg/apis/response"
	"strings"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func InstallHandler(group *gin.RouterGroup, mgr ActionController) {
	group.GET("/data", getData(mgr))
	group.POST("/update", updateData(mgr))
	group.POST("/:"+apis.Device+"/button", pressButton(mgr))
}

func fail(c *gin.Context, code int, err error) {
	c.JSON(code, statusResponse{Status: apis.StatusError, Message: response.Message(err)})
}

func getData(mgr ActionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := mgr.Snapshot()
		if err != nil {
			klog.ErrorS(err, "Failed to load snapshot")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func updateData(mgr ActionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !jsonContent(c) {
			fail(c, http.StatusBadRequest, response.ErrMalformedJSON)
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyBytes))
		if err != nil || !json.Valid(body) {
			klog.V(2).InfoS("Failed to get request body", "err", err)
			fail(c, http.StatusBadRequest, response.ErrMalformedJSON)
			return
		}

		if _, err = mgr.Update(body); err != nil {
			klog.V(2).InfoS("Failed to update state", "err", err)
			code := http.StatusInternalServerError
			if response.Code(err) == response.ErrCodeInvalidUpdate {
				code = http.StatusBadRequest
			}
			fail(c, code, err)
			return
		}
		c.JSON(http.StatusOK, statusResponse{Status: apis.StatusSuccess})
	}
}

func pressButton(mgr ActionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Action string `json:"action"`
		}
		if !jsonContent(c) {
			fail(c, http.StatusBadRequest, response.ErrMalformedJSON)
			return
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			klog.V(2).InfoS("Failed to parse action", "err", err)
			fail(c, http.StatusBadRequest, response.ErrMalformedJSON)
			return
		}
		if len(strings.TrimSpace(body.Action)) == 0 {
			fail(c, http.StatusBadRequest, response.ErrMissingAction)
			return
		}

		result := mgr.Apply(c.Request.Context(), c.Param(apis.Device), body.Action)
		c.Header(apis.RequestID, result.RequestID)
		if !result.Success {
			code := http.StatusBadRequest
			if response.Code(result.Err) == response.ErrCodeStateStore {
				code = http.StatusInternalServerError
			}
			fail(c, code, result.Err)
			return
		}
		c.JSON(http.StatusOK, result.Snapshot)
	}
}

func jsonContent(c *gin.Context) bool {
	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil {
		return false
	}
	return updateContentTypes.Has(mediaType)
}
