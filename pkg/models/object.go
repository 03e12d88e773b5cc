package models

import "fmt"

// ObjectType classifies a directory principal.
type ObjectType string

const (
	ObjectTypeUser             ObjectType = "User"
	ObjectTypeGroup            ObjectType = "Group"
	ObjectTypeServicePrincipal ObjectType = "ServicePrincipal"
)

// ObjectTypeFromOData maps a Graph "@odata.type" discriminator onto an
// ObjectType. Anything unrecognized is an error carrying the raw value.
func ObjectTypeFromOData(value string) (ObjectType, error) {
	switch value {
	case "#microsoft.graph.user":
		return ObjectTypeUser, nil
	case "#microsoft.graph.group":
		return ObjectTypeGroup, nil
	case "#microsoft.graph.servicePrincipal":
		return ObjectTypeServicePrincipal, nil
	default:
		return "", fmt.Errorf("unknown directory object type: %q", value)
	}
}

// Object is a resolved directory principal.
type Object struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	UPN         string     `json:"upn,omitempty"`
	Type        ObjectType `json:"object_type"`
}
