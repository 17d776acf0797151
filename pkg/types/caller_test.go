package types

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

func TestCallerContext(t *testing.T) {
	id := uuid.New()
	c := NewCaller(id, enums.UserRoleCanteenOperator)
	if c.IsSystem() || c.OperatorString() != id.String() {
		t.Fatalf("unexpected caller %+v", c)
	}
	id = uuid.New()
	if *c.OperatorID == id {
		t.Fatal("caller must not alias the input id")
	}

	sys := SystemCaller()
	if !sys.IsSystem() || sys.OperatorString() != "system" {
		t.Fatalf("unexpected system caller %+v", sys)
	}
}
