package authz

const (
	RoleAuditor   = "auditor"
	RoleAnalyst   = "analyst"
	RoleAnonymous = "anonymous"
)

const (
	ActionRead = "read"
)

const DomainGlobal = "global"

const (
	ObjectForensicsAnalyses      = "forensics.analyses"
	ObjectForensicsLedger        = "forensics.ledger"
	ObjectForensicsVerifications = "forensics.verifications"
)

var knownObjects = map[string]bool{
	ObjectForensicsAnalyses:      true,
	ObjectForensicsLedger:        true,
	ObjectForensicsVerifications: true,
}

func KnownObject(object string) bool { return knownObjects[object] }
