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
/*
	hotpath profile-guided native code engine

	profiles hot operations cycle-accurately and swaps them to
	generated x86-64 machine code at runtime

*/
package main

import "os"
import "fmt"
import "flag"
import "time"
import "sync"
import "syscall"
import "runtime"
import "os/signal"
import "crypto/rand"
import "runtime/pprof"
import "github.com/google/uuid"
import "github.com/fsnotify/fsnotify"
import "github.com/launix-de/hotpath/jit"
import "github.com/launix-de/hotpath/prof"

var engine *jit.Engine
var sampler *prof.Sampler
var store prof.SnapshotStore

// operations available out of the box for invoke/bench from the shell
var builtins = []struct {
	name   string
	kernel string
	imm    int32
}{
	{"const42", "const", 42},
	{"add", "add", 0},
	{"array_sum", "array_sum", 0},
	{"array_sum4", "array_sum4", 0},
}

func watchSettings(filename string) {
	// watch for changes
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		panic(err)
	}
	go func() {
		for {
			select {
			case /*event :=*/ <- watcher.Events:
				// flush all other events
				for {
					time.Sleep(10 * time.Millisecond) // delay a bit, so we don't read empty files
					select {
					case <- watcher.Events:
						// ignore
					default:
						goto to_reread
					}
				}
				to_reread:
				// now reread the settings
				func () {
					defer func() {
						if err := recover(); err != nil {
							// error happens during reload: log to console
							fmt.Println(err)
						}
					}()
					prof.ReloadSettings()
				}()
				watcher.Add(filename) // text editors rename, so we have to rewatch
			}
		}
	}()
	err = watcher.Add(filename)
	if err != nil {
		panic(err)
	}
}

// workaround for flags package to allow multiple values
type arrayFlags []string

func (i *arrayFlags) String() string {
    return "dummy"
}

func (i *arrayFlags) Set(value string) error {
    *i = append(*i, value)
    return nil
}

func main() {
	fmt.Print(`hotpath Copyright (C) 2025, 2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;

`)

	// init random generator for session UUIDs
	uuid.SetRand(rand.Reader)

	// parse command line options
	var commands arrayFlags
	flag.Var(&commands, "c", "Execute shell command")

	basepath := "data"
	flag.StringVar(&basepath, "data", "data", "Data folder for snapshots and settings")

	settingspath := ""
	flag.StringVar(&settingspath, "settings", "", "Settings file (default: <data>/settings.json)")

	port := ""
	flag.StringVar(&port, "port", "4321", "Port for the HTTP dashboard (empty to disable)")

	mysqlport := ""
	flag.StringVar(&mysqlport, "mysql", "3307", "Port for the MySQL statistics endpoint (empty to disable)")

	profile := ""
	flag.StringVar(&profile, "pprof", "", "Write a CPU profile to this file")

	flag.Parse()

	// settings initialization
	os.MkdirAll(basepath, 0750)
	if settingspath == "" {
		settingspath = basepath + "/settings.json"
	}
	prof.InitSettings(settingspath)
	prof.SaveSettings() // materialize the file so the watcher has something to watch
	watchSettings(settingspath)

	// engine initialization
	engine = jit.NewEngine()
	prof.OnSettingsChange = engine.ApplySettings
	for _, b := range builtins {
		if _, err := engine.Register(b.name, b.kernel, b.imm); err != nil {
			panic(err)
		}
	}
	sampler = prof.NewSampler(engine.Table, engine.SnapshotExtra)
	sampler.Start()
	store = prof.OpenStore(prof.Settings.Backend)

	// servers
	if port != "" {
		HTTPServe(port)
	}
	if mysqlport != "" {
		MySQLServe(mysqlport)
	}

	// install exit handler
	cancelChan := make(chan os.Signal, 1)
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	go (func () {
		<-cancelChan
		exitroutine()
		os.Exit(1)
	})()

	for _, command := range commands {
		fmt.Println("Executing " + command + " ...")
		fmt.Println(runCommand(command))
	}

	fmt.Print(`

    Type help to show available commands

`)
	// init profiling
	if profile != "" {
		f, err := os.Create(profile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// start cron
	go cronroutine()

	// REPL shell
	Repl()

	// normal shutdown
	exitroutine()
}

var exitsignal chan bool = make(chan bool, 1) // set true to start shutdown routine and wait for all jobs
var exitable sync.WaitGroup
func cronroutine() {
	exitable.Add(1)
	for {
		// wait first
		select {
			case <- exitsignal:
				// hotpath is about to exit; confirm the waitgroup and exit
				exitable.Done()
				return
			case <- time.After(time.Minute * 15): // persist the profile every 15 minutes
				// continue
		}

		fmt.Println("running 15min cron ...")
		fmt.Println("profile autosave done in ", autosave())
	}
}

// autosave writes the current snapshot to the store and prunes old ones
func autosave() time.Duration {
	start := time.Now()
	s := sampler.Refresh()
	if err := prof.SaveSnapshot(store, s.TakenAt.UTC().Format("20060102-150405"), s); err != nil {
		fmt.Println("snapshot autosave failed:", err)
	}
	// timestamp names sort lexically, so the oldest come first
	names := store.ListSnapshots()
	if keep := prof.Settings.SnapshotHistory; keep > 0 && len(names) > keep {
		for _, name := range names[:len(names)-keep] {
			store.RemoveSnapshot(name)
		}
	}
	return time.Since(start)
}

func exitroutine() {
	exitsignal <- true
	exitable.Wait()
	fmt.Println("Exit procedure...")
	if ReplInstance != nil {
		// in case it dosen't exit properly
		ReplInstance.Close()
	}
	fmt.Println("saving last profile...")
	autosave()
	sampler.Stop()
	fmt.Println("releasing generated code...")
	engine.Close()
	runtime.GC()
	fmt.Println("Exit procedure finished")
}
