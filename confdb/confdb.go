// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package confdb retrieves named channel setups for the counter/timer
// boards from the configuration database, and applies them through the
// device multiplexer.
package confdb // import "github.com/go-daq/pcictr/confdb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-daq/pcictr/ctr"
	"github.com/go-daq/pcictr/mux"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve channel setups from the
// configuration database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the configuration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("confdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("confdb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("confdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// Channel is the stored configuration of one counter.
type Channel struct {
	Board   int      `json:"board"`
	Counter int      `json:"counter"`
	Mode    ctr.Mode `json:"mode"`
	Load    uint32   `json:"load"`
}

// Name returns the device name of the channel.
func (ch Channel) Name() string {
	return mux.DeviceID{
		Board: ch.Board,
		Kind:  ctr.KindCounter,
		Index: ch.Counter,
	}.Name()
}

// Setup is a named set of channel configurations.
type Setup struct {
	Name     string
	Channels []Channel
}

// Setups returns the names of the stored setups.
func (db *DB) Setups(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var names []string
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM setups ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("confdb: could not query setups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("confdb: could not scan setup name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("confdb: could not scan db for setups: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("confdb: context error while retrieving setups: %w", err)
	}

	return names, nil
}

// Setup returns the channel configurations of the named setup.
func (db *DB) Setup(ctx context.Context, name string) (Setup, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	setup := Setup{Name: name}
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT channels.board, channels.counter,
       channels.source, channels.dir, channels.gate, channels.output,
       channels.rpt, channels.loadval
FROM channels
JOIN setup_channels ON channels.identifier=setup_channels.channel
JOIN setups         ON setups.identifier=setup_channels.setup
WHERE (
	setups.name=?
)
`,
		name,
	)
	if err != nil {
		return setup, fmt.Errorf("confdb: could not run setup query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			ch                       Channel
			src, dir, gate, out, rpt int
		)
		err = rows.Scan(
			&ch.Board, &ch.Counter,
			&src, &dir, &gate, &out,
			&rpt, &ch.Load,
		)
		if err != nil {
			return setup, fmt.Errorf("confdb: could not scan row %d of setup %q: %w",
				i, name, err)
		}
		i++

		ch.Mode = ctr.Mode{
			Source: ctr.Source(src),
			Dir:    ctr.Direction(dir),
			Gate:   ctr.Gate(gate),
			Output: ctr.Output(out),
			Repeat: rpt != 0,
		}
		setup.Channels = append(setup.Channels, ch)
	}

	if err := rows.Err(); err != nil {
		return setup, fmt.Errorf("confdb: could not scan db for setup %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return setup, fmt.Errorf("confdb: context error while retrieving setup %q: %w", name, err)
	}

	if len(setup.Channels) == 0 {
		return setup, fmt.Errorf("confdb: no setup %q: %w", name, ctr.ErrNoSuchChannel)
	}

	return setup, nil
}

// Apply pushes the setup through the multiplexer: each channel gets
// its mode set and its load value staged, leaving the channel armed.
func (setup Setup) Apply(ctl mux.Ctler) error {
	for _, ch := range setup.Channels {
		mode := ch.Mode
		_, err := ctl.Ctl(ch.Name(), mux.SetMode, mux.Args{Mode: &mode})
		if err != nil {
			return fmt.Errorf("confdb: could not set mode of %q: %w", ch.Name(), err)
		}
		_, err = ctl.Ctl(ch.Name(), mux.Load, mux.Args{Val: ch.Load})
		if err != nil {
			return fmt.Errorf("confdb: could not load %q: %w", ch.Name(), err)
		}
	}
	return nil
}
