package gate

// Names of the gates known to the operator.
const (
	ContinueReconciliationOnManualRollingUpdateFailure = "ContinueReconciliationOnManualRollingUpdateFailure"
	KafkaNodePools                                     = "KafkaNodePools"
	UseKRaft                                           = "UseKRaft"
	UnidirectionalTopicOperator                        = "UnidirectionalTopicOperator"
)

var defaultCatalog = MustCatalog(
	Definition{
		Name:        ContinueReconciliationOnManualRollingUpdateFailure,
		Default:     BoolValue(false),
		Description: "Keep reconciling a cluster when a manual rolling update of its pods fails.",
	},
	Definition{
		Name:        KafkaNodePools,
		Default:     BoolValue(true),
		Description: "Manage Kafka nodes through KafkaNodePool resources.",
	},
	Definition{
		Name:        UseKRaft,
		Default:     BoolValue(true),
		Description: "Run Kafka clusters in KRaft mode instead of ZooKeeper mode.",
		DependsOn:   []string{KafkaNodePools},
	},
	Definition{
		Name:        UnidirectionalTopicOperator,
		Default:     BoolValue(true),
		Description: "Use the unidirectional topic operator.",
	},
)

// Default returns the operator's built-in catalog.
func Default() *Catalog { return defaultCatalog }
