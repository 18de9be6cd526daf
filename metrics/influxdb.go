// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"net/url"
	"time"

	influxclient "github.com/influxdata/influxdb/client"

	"github.com/dotlanth/dotdb/log"
)

// InfluxDBConfig configures the periodic InfluxDB exporter.
type InfluxDBConfig struct {
	Endpoint  string
	Database  string
	Username  string
	Password  string
	Namespace string
	Interval  time.Duration
}

// InfluxDBReporter periodically snapshots a Registry and writes it to
// InfluxDB as a single measurement per metric.
type InfluxDBReporter struct {
	reg    *Registry
	cfg    InfluxDBConfig
	client *influxclient.Client
	quit   chan struct{}
}

// NewInfluxDBReporter constructs a reporter; Start must be called to begin
// the push loop.
func NewInfluxDBReporter(reg *Registry, cfg InfluxDBConfig) (*InfluxDBReporter, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	c, err := influxclient.NewClient(influxclient.Config{
		URL:      *u,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	return &InfluxDBReporter{reg: reg, cfg: cfg, client: c, quit: make(chan struct{})}, nil
}

// Start runs the export loop until Stop is called.
func (r *InfluxDBReporter) Start() {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.send(); err != nil {
					log.Warn("influxdb metrics push failed", "err", err)
				}
			case <-r.quit:
				return
			}
		}
	}()
}

// Stop ends the export loop.
func (r *InfluxDBReporter) Stop() { close(r.quit) }

func (r *InfluxDBReporter) send() error {
	var points []influxclient.Point
	r.reg.Each(func(name string, metric interface{}) {
		var value interface{}
		switch m := metric.(type) {
		case Counter:
			value = m.Count()
		case Gauge:
			value = m.Value()
		case Meter:
			value = m.Count()
		default:
			return
		}
		points = append(points, influxclient.Point{
			Measurement: r.cfg.Namespace + name,
			Fields:      map[string]interface{}{"value": value},
			Time:        time.Now(),
		})
	})
	if len(points) == 0 {
		return nil
	}
	_, err := r.client.Write(influxclient.BatchPoints{
		Points:   points,
		Database: r.cfg.Database,
	})
	return err
}
