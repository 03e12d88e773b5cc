package backend

import "github.com/diggerhq/azure-pim/pkg/azure"

// Operation enumerates the Microsoft.Authorization operations the client
// issues. Each carries its own api-version; they are not interchangeable.
type Operation int

const (
	OperationRoleAssignments Operation = iota
	OperationRoleDefinitions
	OperationRoleAssignmentScheduleInstances
	OperationRoleEligibilityScheduleInstances
	OperationRoleAssignmentScheduleRequests
	OperationRoleEligibilityScheduleRequests
	OperationEligibleChildResources
)

func (o Operation) String() string {
	switch o {
	case OperationRoleAssignments:
		return "roleAssignments"
	case OperationRoleDefinitions:
		return "roleDefinitions"
	case OperationRoleAssignmentScheduleInstances:
		return "roleAssignmentScheduleInstances"
	case OperationRoleEligibilityScheduleInstances:
		return "roleEligibilityScheduleInstances"
	case OperationRoleAssignmentScheduleRequests:
		return "roleAssignmentScheduleRequests"
	case OperationRoleEligibilityScheduleRequests:
		return "roleEligibilityScheduleRequests"
	case OperationEligibleChildResources:
		return "eligibleChildResources"
	default:
		return "unknown"
	}
}

func (o Operation) apiVersion() string {
	switch o {
	case OperationRoleAssignments, OperationRoleDefinitions:
		return "2022-04-01"
	default:
		return "2020-10-01"
	}
}

func (o Operation) tokenScope() azure.TokenScope {
	return azure.TokenScopeManagement
}
