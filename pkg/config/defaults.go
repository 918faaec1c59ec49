package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8081"

	defaultClientAPITarget = "http://localhost:8081"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "ntree.tree.changed"

	defaultBatcherQueueSize = 256
	defaultBatcherMaxBatch  = 64
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Batcher: BatcherConfig{
			QueueSize: defaultBatcherQueueSize,
			MaxBatch:  defaultBatcherMaxBatch,
		},
	}
}
