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
package prof

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dc0d/onexit"
)

type SettingsT struct {
	CallsThreshold   uint64 // promotion: minimum number of measured calls
	CyclesThreshold  uint64 // promotion: minimum cumulative cycles
	ProfileCompiled  bool   // keep measuring operations after they run native code
	TrackSelfTime    bool   // per-goroutine frames to split self vs child cycles
	SelfCheck        bool   // verify generated code against baseline when compiling
	Trace            bool   // hex-dump generated code to stdout
	SnapshotInterval int    // seconds between automatic snapshots, 0 = off
	SnapshotHistory  int    // number of snapshots kept for the dashboard
	Backend          BackendConfig
}

var Settings SettingsT = SettingsT{100, 1000000, true, false, true, false, 10, 120, BackendConfig{Backend: "files"}}

// OnSettingsChange is invoked after Settings has been mutated so the engine
// can push thresholds and flags into its live profile table.
var OnSettingsChange func(SettingsT)

var settingsPath string

// call this after you filled Settings or pass a json file to load over the defaults
func InitSettings(path string) {
	settingsPath = path
	if path != "" {
		if jsonbytes, err := os.ReadFile(path); err == nil && len(jsonbytes) > 0 {
			if err := json.Unmarshal(jsonbytes, &Settings); err != nil {
				panic("settings: " + path + ": " + err.Error())
			}
		}
	}
	applySettings()
	onexit.Register(func() { SaveSettings() })
}

// ReloadSettings rereads the settings file (used by the fsnotify watcher).
func ReloadSettings() {
	if settingsPath == "" {
		return
	}
	jsonbytes, err := os.ReadFile(settingsPath)
	if err != nil || len(jsonbytes) == 0 {
		return
	}
	if err := json.Unmarshal(jsonbytes, &Settings); err != nil {
		panic("settings: " + settingsPath + ": " + err.Error())
	}
	applySettings()
}

func SaveSettings() {
	if settingsPath == "" {
		return
	}
	jsonbytes, err := json.MarshalIndent(&Settings, "", "\t")
	if err != nil {
		panic(err)
	}
	f, err := os.Create(settingsPath)
	if err != nil {
		// settings are not worth crashing the shutdown path
		fmt.Println("could not save settings:", err)
		return
	}
	defer f.Close()
	f.Write(jsonbytes)
}

func applySettings() {
	if OnSettingsChange != nil {
		OnSettingsChange(Settings)
	}
}

// ChangeSettings lists (no args), reads (1 arg) or writes (2 args) a setting.
func ChangeSettings(a ...string) string {
	if len(a) == 0 {
		return fmt.Sprintf(`CallsThreshold = %d
CyclesThreshold = %d
ProfileCompiled = %v
TrackSelfTime = %v
SelfCheck = %v
Trace = %v
SnapshotInterval = %d
SnapshotHistory = %d
Backend = %s`,
			Settings.CallsThreshold,
			Settings.CyclesThreshold,
			Settings.ProfileCompiled,
			Settings.TrackSelfTime,
			Settings.SelfCheck,
			Settings.Trace,
			Settings.SnapshotInterval,
			Settings.SnapshotHistory,
			Settings.Backend.Backend)
	} else if len(a) == 1 {
		switch a[0] {
		case "CallsThreshold":
			return strconv.FormatUint(Settings.CallsThreshold, 10)
		case "CyclesThreshold":
			return strconv.FormatUint(Settings.CyclesThreshold, 10)
		case "ProfileCompiled":
			return strconv.FormatBool(Settings.ProfileCompiled)
		case "TrackSelfTime":
			return strconv.FormatBool(Settings.TrackSelfTime)
		case "SelfCheck":
			return strconv.FormatBool(Settings.SelfCheck)
		case "Trace":
			return strconv.FormatBool(Settings.Trace)
		case "SnapshotInterval":
			return strconv.Itoa(Settings.SnapshotInterval)
		case "SnapshotHistory":
			return strconv.Itoa(Settings.SnapshotHistory)
		case "Backend":
			return Settings.Backend.Backend
		default:
			panic("unknown setting: " + a[0])
		}
	} else {
		switch a[0] {
		case "CallsThreshold":
			Settings.CallsThreshold = mustUint(a[1])
		case "CyclesThreshold":
			Settings.CyclesThreshold = mustUint(a[1])
		case "ProfileCompiled":
			Settings.ProfileCompiled = mustBool(a[1])
		case "TrackSelfTime":
			Settings.TrackSelfTime = mustBool(a[1])
		case "SelfCheck":
			Settings.SelfCheck = mustBool(a[1])
		case "Trace":
			Settings.Trace = mustBool(a[1])
		case "SnapshotInterval":
			Settings.SnapshotInterval = int(mustUint(a[1]))
		case "SnapshotHistory":
			Settings.SnapshotHistory = int(mustUint(a[1]))
		case "Backend":
			Settings.Backend.Backend = a[1]
		default:
			panic("unknown setting: " + a[0])
		}
		applySettings()
		SaveSettings()
		return "ok"
	}
}

func mustUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		panic("not a number: " + s)
	}
	return v
}

func mustBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		panic("not a bool: " + s)
	}
	return v
}
