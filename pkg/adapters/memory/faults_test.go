package memory_test

import (
	"testing"

	"github.com/aretw0/crackle/pkg/adapters/memory"
	"github.com/aretw0/crackle/pkg/ports"
	contract "github.com/aretw0/crackle/pkg/ports/tests"
)

func TestMemoryFaultLog_Contract(t *testing.T) {
	contract.FaultReporterContractTest(t, memory.NewFaultLog())
}

func TestMemoryLocker_Contract(t *testing.T) {
	ports.RunLockerContract(t, memory.NewLocker())
}
