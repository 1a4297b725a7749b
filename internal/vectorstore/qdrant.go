package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("lexrag.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), not the HTTP REST port (6333).
	Port int

	// Collection is the collection for chunk vectors.
	Collection string

	// Dimension is the vector dimension; must match the embedding provider.
	Dimension int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey authenticates against a secured Qdrant deployment. Optional.
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB, large enough for batch upserts of long documents.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// QdrantIndex is an Index implementation backed by Qdrant over gRPC.
//
// The gRPC transport avoids the HTTP layer's payload limits during bulk
// ingestion. The backing collection is created lazily on first use; the
// create is idempotent and a concurrent duplicate-create is tolerated.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig

	// ensureMu serializes lazy collection creation; ensured flips once the
	// collection is known to exist.
	ensureMu sync.Mutex
	ensured  bool
}

// NewQdrantIndex creates a QdrantIndex and verifies connectivity.
// An unreachable server surfaces as ErrNotConfigured so callers can choose
// a fallback.
func NewQdrantIndex(config QdrantConfig) (*QdrantIndex, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	idx := &QdrantIndex{client: client, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrNotConfigured, err)
	}
	return idx, nil
}

// ensureCollection creates the backing collection if absent. Safe under
// concurrent callers: the check and create are serialized in-process, and a
// duplicate create racing another process is treated as success.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	q.ensureMu.Lock()
	defer q.ensureMu.Unlock()
	if q.ensured {
		return nil
	}

	exists, err := q.client.CollectionExists(ctx, q.config.Collection)
	if err != nil {
		return classifyQdrantErr("checking collection", err)
	}
	if !exists {
		err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.config.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !isAlreadyExists(err) {
			return classifyQdrantErr("creating collection", err)
		}
	}
	q.ensured = true
	return nil
}

// Upsert inserts or replaces points by ID.
func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.Int("point_count", len(points)),
		attribute.String("collection", q.config.Collection),
	)

	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if err := checkDimension(p.Vector, q.config.Dimension); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := q.ensureCollection(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload)+1)
		payload["id"] = toQdrantValue(p.ID)
		for k, v := range p.Payload {
			payload[k] = toQdrantValue(v)
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrantPointID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.config.Collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return classifyQdrantErr("upserting points", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns the nearest points by cosine similarity.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", q.config.Collection),
		attribute.Int("limit", opts.Limit),
	)

	if err := checkDimension(vector, q.config.Dimension); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	limit := normalizeLimit(opts.Limit)

	if err := q.ensureCollection(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildQdrantFilter(opts.Filter),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, classifyQdrantErr("searching", err)
	}

	results := make([]SearchResult, len(scored))
	for i, point := range scored {
		r := SearchResult{Score: point.Score}
		if point.Payload != nil {
			r.Payload = make(map[string]any, len(point.Payload))
			for k, v := range point.Payload {
				val := fromQdrantValue(v)
				r.Payload[k] = val
				switch k {
				case "content":
					if s, ok := val.(string); ok {
						r.Content = s
					}
				case "id":
					if s, ok := val.(string); ok {
						r.ID = s
					}
				}
			}
		}
		results[i] = r
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// DeleteByFilter removes all points matching the payload filter.
func (q *QdrantIndex) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	ctx, span := tracer.Start(ctx, "QdrantIndex.DeleteByFilter")
	defer span.End()
	span.SetAttributes(attribute.String("collection", q.config.Collection))

	if len(filter) == 0 {
		return fmt.Errorf("delete filter cannot be empty")
	}

	if err := q.ensureCollection(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.config.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildQdrantFilter(filter),
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return classifyQdrantErr("deleting points", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Dimension returns the configured vector dimension.
func (q *QdrantIndex) Dimension() int {
	return q.config.Dimension
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// qdrantPointID maps a chunk ID to a Qdrant point ID. Qdrant requires UUID
// or integer IDs; non-UUID chunk IDs get a deterministic UUID derived from
// the ID bytes so repeated upserts stay idempotent.
func qdrantPointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	derived := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	return qdrant.NewIDUUID(derived.String())
}

// buildQdrantFilter converts equality predicates to a Qdrant filter.
func buildQdrantFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		var match *qdrant.Match
		switch v := value.(type) {
		case string:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
		case int:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
		case int64:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
		case bool:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
		default:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprint(v)}}
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: key, Match: match},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

// toQdrantValue converts a payload value to the Qdrant protobuf form.
func toQdrantValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprint(val)}}
	}
}

// fromQdrantValue converts a Qdrant protobuf value back to a Go value.
func fromQdrantValue(v *qdrant.Value) any {
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}

// classifyQdrantErr maps gRPC failures onto the package's sentinel errors:
// unreachable backends become ErrNotConfigured, everything else transient
// becomes ErrQueryFailed.
func classifyQdrantErr(op string, err error) error {
	st, ok := status.FromError(err)
	if ok && st.Code() == grpccodes.Unavailable {
		return fmt.Errorf("%w: %s: %v", ErrNotConfigured, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrQueryFailed, op, err)
}

// isAlreadyExists reports whether err is a duplicate-create response, which
// a concurrent caller may have triggered harmlessly.
func isAlreadyExists(err error) bool {
	st, ok := status.FromError(err)
	if ok && st.Code() == grpccodes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

var _ Index = (*QdrantIndex)(nil)
