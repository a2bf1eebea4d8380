// Package devwatch is a development-time companion server: it polls a
// directory of function source files, recompiles whichever changed,
// and fans the resulting documents out to whatever's listening --
// browser tabs over a websocket, or an MQTT topic for anything else
// that wants to watch a build. It mirrors the sheens crew service's
// own fan-out (one inbound channel, many per-connection outbound
// channels) and its MQTT publisher.
package devwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/aslcompile/aslc/core"
	"github.com/aslcompile/aslc/surfaceast"
)

// Result is one file's compilation outcome, broadcast verbatim (as
// JSON) to every connected watcher.
type Result struct {
	File string          `json:"file"`
	Doc  *core.ASLDoc    `json:"doc,omitempty"`
	Err  string          `json:"err,omitempty"`
	At   time.Time       `json:"at"`
	Opts json.RawMessage `json:"-"`
}

// Watcher polls Dir for ".js" files every Interval, recompiling any
// whose mtime advanced since the last pass, and forwards every
// Result to broadcast.
type Watcher struct {
	Dir      string
	Interval time.Duration
	Opts     *core.CompileOptions

	mtimes map[string]time.Time

	mu    sync.Mutex
	subs  map[string]chan Result
	mqttC mqtt.Client
	topic string
}

// NewWatcher makes a Watcher polling dir at the given interval
// (defaults to one second if interval is zero).
func NewWatcher(dir string, interval time.Duration, opts *core.CompileOptions) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		Dir:      dir,
		Interval: interval,
		Opts:     opts,
		mtimes:   map[string]time.Time{},
		subs:     map[string]chan Result{},
	}
}

// UseMQTT arms publishing every Result as JSON to topic over client,
// the way sio's MQTTCouplings publishes outbound machine results.
func (w *Watcher) UseMQTT(client mqtt.Client, topic string) {
	w.mqttC = client
	w.topic = topic
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	files, err := ioutil.ReadDir(w.Dir)
	if err != nil {
		log.Printf("devwatch: ReadDir %s: %v", w.Dir, err)
		return
	}
	for _, fi := range files {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".js") {
			continue
		}
		mtime := fi.ModTime()
		path := w.Dir + "/" + fi.Name()
		if prev, ok := w.mtimes[path]; ok && !mtime.After(prev) {
			continue
		}
		w.mtimes[path] = mtime
		w.compileAndBroadcast(path)
	}
}

func (w *Watcher) compileAndBroadcast(path string) {
	res := Result{File: path, At: time.Now()}

	src, err := os.ReadFile(path)
	if err != nil {
		res.Err = err.Error()
		w.broadcast(res)
		return
	}

	fn, err := surfaceast.ParseFunction(string(src))
	if err != nil {
		res.Err = err.Error()
		w.broadcast(res)
		return
	}

	doc, err := core.Compile(fn, w.Opts)
	if err != nil {
		res.Err = err.Error()
		w.broadcast(res)
		return
	}
	res.Doc = doc
	w.broadcast(res)
}

func (w *Watcher) broadcast(res Result) {
	js, err := json.Marshal(&res)
	if err != nil {
		log.Printf("devwatch: marshal %s: %v", res.File, err)
		return
	}

	w.mu.Lock()
	for id, c := range w.subs {
		select {
		case c <- res:
		default:
			log.Printf("devwatch: subscriber %s blocked, dropping", id)
		}
	}
	w.mu.Unlock()

	if w.mqttC != nil {
		token := w.mqttC.Publish(w.topic, 0, false, js)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("devwatch: mqtt publish: %v", err)
		}
	}
}

func (w *Watcher) subscribe(id string) chan Result {
	c := make(chan Result, 32)
	w.mu.Lock()
	w.subs[id] = c
	w.mu.Unlock()
	return c
}

func (w *Watcher) unsubscribe(id string) {
	w.mu.Lock()
	delete(w.subs, id)
	w.mu.Unlock()
}

var upgrader = websocket.Upgrader{}

// ServeHTTP upgrades the connection to a websocket and streams every
// subsequent Result as JSON until a write to the client fails.
func (w *Watcher) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Println("devwatch: upgrade error", err)
		return
	}
	defer conn.Close()

	id := conn.RemoteAddr().String()
	in := w.subscribe(id)
	defer w.unsubscribe(id)

	for res := range in {
		js, err := json.Marshal(&res)
		if err != nil {
			log.Printf("devwatch: marshal %s: %v", res.File, err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, js); err != nil {
			log.Println("devwatch: write:", err)
			return
		}
	}
}

// NewMQTTClient builds an MQTT client connected to broker, the way
// sio's mqtt command builds its publisher client, stripped to the
// options this watcher needs.
func NewMQTTClient(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	if clientID == "" {
		clientID = fmt.Sprintf("devwatch-%d", time.Now().UnixNano())
	}
	opts.SetClientID(clientID)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}
