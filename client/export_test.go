package client

import "time"

func SetWatchPongWait(r *Remote, d time.Duration) {
	r.pongWait = d
}
