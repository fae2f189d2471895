package firestore

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
)

// softDeleted reports a soft-deleted document the same way Firestore reports a missing one.
func softDeleted(collection, id string) error {
	return pfirestore.WrapError(collection+".get", status.Error(codes.NotFound, fmt.Sprintf("%s/%s deleted", collection, id)))
}
