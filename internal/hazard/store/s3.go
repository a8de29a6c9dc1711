package store

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/windward/internal/hazard"
)

// curveSetEntry is one curve in a published curve set object: the request
// tuple plus its payload, msgpack-encoded as a flat list.
type curveSetEntry struct {
	Hazard        string    `msgpack:"hazard"`
	Indicator     string    `msgpack:"indicator"`
	Scenario      string    `msgpack:"scenario"`
	Year          int       `msgpack:"year"`
	Latitude      float64   `msgpack:"latitude"`
	Longitude     float64   `msgpack:"longitude"`
	ReturnPeriods []float64 `msgpack:"return_periods"`
	Intensities   []float64 `msgpack:"intensities"`
	Parameter     float64   `msgpack:"parameter"`
	Units         string    `msgpack:"units"`
}

// Loader ingests published hazard curve sets from an object store into the
// local curve repository.
type Loader struct {
	store      *Store
	downloader *manager.Downloader
	bucket     string
	prefix     string
	log        zerolog.Logger
}

// NewLoader builds an S3-backed curve set loader using the default AWS
// credential chain.
func NewLoader(ctx context.Context, store *Store, bucket, prefix, region string, log zerolog.Logger) (*Loader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &Loader{
		store:      store,
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
		prefix:     prefix,
		log:        log.With().Str("component", "curve_set_loader").Logger(),
	}, nil
}

// LoadCurveSet downloads one curve set object and upserts every curve into
// the store. Returns the number of curves ingested.
func (l *Loader) LoadCurveSet(ctx context.Context, name string) (int, error) {
	key := path.Join(l.prefix, name)

	buf := manager.NewWriteAtBuffer(nil)
	_, err := l.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("downloading curve set s3://%s/%s: %w", l.bucket, key, err)
	}

	var entries []curveSetEntry
	if err := msgpack.Unmarshal(buf.Bytes(), &entries); err != nil {
		return 0, fmt.Errorf("decoding curve set %s: %w", name, err)
	}

	batch := make([]CurveUpsert, 0, len(entries))
	for _, entry := range entries {
		batch = append(batch, CurveUpsert{
			Request: hazard.NewDataRequest(
				hazard.Type(entry.Hazard), entry.Indicator, entry.Scenario, entry.Year,
				entry.Latitude, entry.Longitude),
			Response: hazard.DataResponse{
				ReturnPeriods: entry.ReturnPeriods,
				Intensities:   entry.Intensities,
				Parameter:     entry.Parameter,
				Units:         entry.Units,
			},
		})
	}
	if err := l.store.PutCurveBatch(ctx, batch); err != nil {
		return 0, err
	}

	l.log.Info().
		Str("bucket", l.bucket).
		Str("key", key).
		Int("curves", len(entries)).
		Msg("Curve set ingested")

	return len(entries), nil
}
