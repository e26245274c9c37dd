package respond

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusOK, payload)
}

// Accepted writes a 202 and points Location at the URL clients should poll.
func Accepted(c *gin.Context, location string, payload interface{}) {
	if location != "" {
		c.Header("Location", location)
	}
	JSON(c, http.StatusAccepted, payload)
}

// TooManyRequests writes a 429 rate_limited error with Retry-After in whole seconds (minimum 1).
func TooManyRequests(c *gin.Context, retryAfter time.Duration, message string, details interface{}) {
	c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds(retryAfter)))
	Error(c, http.StatusTooManyRequests, "rate_limited", message, details)
}

// RetryAfterSeconds rounds a wait up to whole seconds.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
