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

import "os"
import "fmt"
import "errors"
import "strings"
import "github.com/launix-de/go-mysqlstack/driver"
import "github.com/launix-de/go-mysqlstack/xlog"
import "github.com/launix-de/go-mysqlstack/sqlparser/depends/sqltypes"
import querypb "github.com/launix-de/go-mysqlstack/sqlparser/depends/query"
import "github.com/launix-de/hotpath/jit"
import "github.com/launix-de/hotpath/prof"

// MySQLServe opens a MySQL protocol endpoint exposing the profile as
// virtual tables, so any mysql client or monitoring agent can poll us
func MySQLServe(port string) {
	log := xlog.NewStdLog(xlog.Level(xlog.INFO))
	var handler MySQLWrapper
	handler.log = log
	password := os.Getenv("HOTPATH_MYSQL_PASSWORD")
	if password == "" {
		password = "hotpath"
	}
	handler.password = driver.CreatePassword(password)

	mysql, err := driver.NewListener(log, fmt.Sprintf(":%v", port), &handler)
	if err != nil {
		panic(err)
	}
	go func () {
		defer mysql.Close()
		mysql.Accept()
	}()
	fmt.Println("MySQL endpoint listening on localhost:" + port)
}

type MySQLWrapper struct {
	log *xlog.Log
	password []byte
}

func (m *MySQLWrapper) ServerVersion() string {
	return "hotpath"
}
func (m *MySQLWrapper) SetServerVersion() {
}
func (m *MySQLWrapper) NewSession(session *driver.Session) {
	m.log.Info("New Session from " + session.Addr())
}
func (m *MySQLWrapper) SessionInc(session *driver.Session) {
	// I think we can skip session counting
}
func (m *MySQLWrapper) SessionDec(session *driver.Session) {
	// I think we can skip session counting
}
func (m *MySQLWrapper) SessionClosed(session *driver.Session) {
	m.log.Info("Closed Session " + session.User() + " from " + session.Addr())
}
func (m *MySQLWrapper) SessionCheck(session *driver.Session) error {
	// we could reject clients here when server load is too full
	return nil
}

func (m *MySQLWrapper) AuthCheck(session *driver.Session) error {
	m.log.Info("Auth Check with " + session.User())
	if !session.TestPassword(m.password) {
		return errors.New("Auth failed")
	}
	return nil
}
func (m *MySQLWrapper) ComInitDB(session *driver.Session, database string) error {
	m.log.Info("db "+database)
	// there is only one virtual schema, accept any name
	session.SetSchema(database)
	return nil
}

type ErrorWrapper string
func (s ErrorWrapper) Error() string {
	return string(s)
}

func (m *MySQLWrapper) ComQuery(session *driver.Session, query string, bindVariables map[string]*querypb.BindVariable, callback func(*sqltypes.Result) error) (myerr error) {
	if query == "select @@version_comment limit 1" {
		callback(&sqltypes.Result {
			Fields: []*querypb.Field {
				{ Name: "@@version_comment", Type: querypb.Type_TEXT },
			},
			Rows: [][]sqltypes.Value {
				{ sqltypes.MakeTrusted(querypb.Type_TEXT, []byte("hotpath profile engine")) },
			},
		})
		return nil
	}
	defer func () {
		if r := recover(); r != nil {
			fmt.Println("error in mysql connection: " + fmt.Sprint(r))
			myerr = ErrorWrapper(fmt.Sprint(r))
		}
	}()
	q := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	switch q {
	case "show tables":
		result := &sqltypes.Result {
			Fields: []*querypb.Field {
				{ Name: "Tables_in_hotpath", Type: querypb.Type_VARCHAR },
			},
		}
		for _, table := range []string{"kernels", "profile", "settings"} {
			result.Rows = append(result.Rows, []sqltypes.Value{ sqltypes.NewVarChar(table) })
		}
		callback(result)
		return nil
	case "select * from profile":
		callback(profileResult())
		return nil
	case "select * from kernels":
		callback(kernelsResult())
		return nil
	case "select * from settings":
		callback(settingsResult())
		return nil
	default:
		return ErrorWrapper("unsupported query: " + query + " (try: select * from profile)")
	}
}

func profileResult() *sqltypes.Result {
	result := &sqltypes.Result {
		Fields: []*querypb.Field {
			{ Name: "operation", Type: querypb.Type_VARCHAR },
			{ Name: "calls", Type: querypb.Type_INT64 },
			{ Name: "total_cycles", Type: querypb.Type_INT64 },
			{ Name: "avg_cycles", Type: querypb.Type_INT64 },
			{ Name: "min_cycles", Type: querypb.Type_INT64 },
			{ Name: "max_cycles", Type: querypb.Type_INT64 },
			{ Name: "last_cycles", Type: querypb.Type_INT64 },
			{ Name: "self_cycles", Type: querypb.Type_INT64 },
			{ Name: "baseline_calls", Type: querypb.Type_INT64 },
			{ Name: "compiled_calls", Type: querypb.Type_INT64 },
			{ Name: "code_bytes", Type: querypb.Type_INT64 },
			{ Name: "status", Type: querypb.Type_VARCHAR },
			{ Name: "speedup", Type: querypb.Type_FLOAT64 },
		},
	}
	engine.Table.Ascend(func(e *prof.Entry) bool {
		min := e.MinCycles.Load()
		if min == ^uint64(0) {
			min = 0
		}
		result.Rows = append(result.Rows, []sqltypes.Value{
			sqltypes.NewVarChar(e.Name),
			sqltypes.NewInt64(int64(e.Calls.Load())),
			sqltypes.NewInt64(int64(e.TotalCycles.Load())),
			sqltypes.NewInt64(int64(e.AvgCycles())),
			sqltypes.NewInt64(int64(min)),
			sqltypes.NewInt64(int64(e.MaxCycles.Load())),
			sqltypes.NewInt64(int64(e.LastCycles.Load())),
			sqltypes.NewInt64(int64(e.SelfCycles())),
			sqltypes.NewInt64(int64(e.BaselineCalls.Load())),
			sqltypes.NewInt64(int64(e.CompiledCalls.Load())),
			sqltypes.NewInt64(int64(e.CodeBytes.Load())),
			sqltypes.NewVarChar(e.Status()),
			sqltypes.NewFloat64(e.Speedup()),
		})
		return true
	})
	return result
}

func kernelsResult() *sqltypes.Result {
	result := &sqltypes.Result {
		Fields: []*querypb.Field {
			{ Name: "kernel", Type: querypb.Type_VARCHAR },
			{ Name: "signature", Type: querypb.Type_VARCHAR },
			{ Name: "max_code", Type: querypb.Type_INT64 },
			{ Name: "description", Type: querypb.Type_VARCHAR },
		},
	}
	for _, k := range jit.Kernels {
		result.Rows = append(result.Rows, []sqltypes.Value{
			sqltypes.NewVarChar(k.Name),
			sqltypes.NewVarChar(k.Sig.String()),
			sqltypes.NewInt64(int64(k.MaxCode)),
			sqltypes.NewVarChar(k.Desc),
		})
	}
	return result
}

func settingsResult() *sqltypes.Result {
	result := &sqltypes.Result {
		Fields: []*querypb.Field {
			{ Name: "name", Type: querypb.Type_VARCHAR },
			{ Name: "value", Type: querypb.Type_VARCHAR },
		},
	}
	for _, line := range strings.Split(prof.ChangeSettings(), "\n") {
		name, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		result.Rows = append(result.Rows, []sqltypes.Value{
			sqltypes.NewVarChar(name),
			sqltypes.NewVarChar(value),
		})
	}
	return result
}
