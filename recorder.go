package pinkit

import (
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
)

const defaultMeasurement = "line_state"

// InfluxRecorder writes one point per confirmed line transition, so
// the operator can chart when lines were energized. Writes are
// batched and asynchronous; a lost point never blocks or fails a pin
// operation.
type InfluxRecorder struct {
	Host         string
	Organization string
	Bucket       string
	Measurement  string
	Token        string

	client   influxdb2.Client
	writeApi api.WriteAPI
	logger   *log.Logger
}

func (ir *InfluxRecorder) Setup(logger *log.Logger) error {
	if len(ir.Host) == 0 || len(ir.Token) == 0 {
		return errors.New("influx recorder requires Host and Token")
	}
	if len(ir.Measurement) == 0 {
		ir.Measurement = defaultMeasurement
	}

	ir.logger = logger
	ir.client = influxdb2.NewClient(ir.Host, ir.Token)
	ir.writeApi = ir.client.WriteAPI(ir.Organization, ir.Bucket)

	go func() {
		for err := range ir.writeApi.Errors() {
			ir.logger.Error("influx write failed", "err", err)
		}
	}()

	return nil
}

func (ir *InfluxRecorder) RecordTransition(group, line string, on bool) {
	point := influxdb2.NewPoint(ir.Measurement,
		map[string]string{"group": group, "line": line},
		map[string]interface{}{"on": on},
		time.Now())
	ir.writeApi.WritePoint(point)
}

func (ir *InfluxRecorder) Close() {
	if ir.client != nil {
		ir.writeApi.Flush()
		ir.client.Close()
	}
}
