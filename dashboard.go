/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package main

import "io"
import "fmt"
import "time"
import "sync"
import "net/http"
import "encoding/json"
import "github.com/gorilla/websocket"
import "github.com/launix-de/hotpath/prof"

// HTTPServe opens the status dashboard on the given port
func HTTPServe(port string) {
	server := &http.Server {
		Addr: fmt.Sprintf(":%v", port),
		Handler: &HttpServer{},
		ReadTimeout: 10 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go server.ListenAndServe()
	// TODO: ListenAndServeTLS
	fmt.Println("Dashboard listening on http://localhost:" + port)
}

// HTTP handler for the profile dashboard
type HttpServer struct {
}

func (s *HttpServer) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	// catch panics and print out 500 Internal Server Error
	defer func () {
		if r := recover(); r != nil {
			fmt.Println("error in http handler: " + fmt.Sprint(r))
			res.Header().Set("Content-Type", "text/plain")
			res.WriteHeader(500)
			io.WriteString(res, "500 Internal Server Error: ")
			io.WriteString(res, fmt.Sprint(r))
		}
	}()
	switch req.URL.Path {
	case "/":
		res.Header().Set("Content-Type", "text/plain")
		io.WriteString(res, `hotpath engine

/report.txt   profile report (five stable columns)
/stats.json   current snapshot
/history.json sampled snapshot history
/live         websocket pushing a snapshot every refresh interval
`)
	case "/report.txt":
		res.Header().Set("Content-Type", "text/plain")
		engine.Table.Report(res)
	case "/stats.json":
		res.Header().Set("Content-Type", "application/json")
		snap := sampler.Current()
		if snap == nil {
			snap = sampler.Refresh()
		}
		snap.WriteTo(res)
	case "/history.json":
		res.Header().Set("Content-Type", "application/json")
		bytes, err := json.MarshalIndent(sampler.History(), "", "\t")
		if err != nil {
			panic(err)
		}
		res.Write(bytes)
	case "/live":
		serveLive(res, req)
	default:
		res.Header().Set("Content-Type", "text/plain")
		res.WriteHeader(404)
		io.WriteString(res, "404 Not Found")
	}
}

// serveLive upgrades to a websocket and pushes a snapshot every refresh
// interval until the client goes away.
func serveLive(res http.ResponseWriter, req *http.Request) {
	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	ws, err := upgrader.Upgrade(res, req, nil)
	if err != nil {
		// TODO: better error handling
		panic(err)
	}
	closed := make(chan bool, 1)
	var sendmutex sync.Mutex
	go func() {
		defer func () {
			if r := recover(); r != nil {
				fmt.Println("error in websocket receive: " + fmt.Sprint(r))
			}
		}()
		for {
			// the client does not send anything, but reading is how we
			// learn about the close
			_, _, err := ws.ReadMessage()
			if err != nil {
				if _, ok := err.(*websocket.CloseError); ok {
					// closed connection
					closed <- true
					return // exit endless loop
				} else {
					closed <- true
					panic(err)
				}
			}
		}
	}()
	// push the first snapshot right away, then one per interval
	snap := sampler.Current()
	if snap == nil {
		snap = sampler.Refresh()
	}
	sendmutex.Lock()
	ws.WriteJSON(snap)
	sendmutex.Unlock()
	go func() {
		defer ws.Close()
		for {
			interval := prof.Settings.SnapshotInterval
			if interval <= 0 {
				interval = 10
			}
			select {
			case <- closed:
				return
			case <- time.After(time.Duration(interval) * time.Second):
				// continue
			}
			snap := sampler.Current()
			if snap == nil {
				continue
			}
			sendmutex.Lock()
			err := ws.WriteJSON(snap)
			sendmutex.Unlock()
			if err != nil {
				return
			}
		}
	}()
}
