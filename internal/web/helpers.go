package web

import (
	"strconv"
	"time"
)

// timeNow is a seam for pinning the clock.
var timeNow = time.Now

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
