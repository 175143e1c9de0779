package batch

import (
	"context"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/teranos/legisync/am"
	"github.com/teranos/legisync/errors"
)

// EmulatorEnvVar is read by the Firestore client to route to a local emulator
const EmulatorEnvVar = "FIRESTORE_EMULATOR_HOST"

const emulatorProjectID = "demo-legisync"

// FirestoreBackend commits batches to Cloud Firestore. Each batch is one
// transaction, so a batch lands whole or not at all.
type FirestoreBackend struct {
	client *firestore.Client
	name   string
	maxOps int
}

// NewFirestoreBackend wraps an open client
func NewFirestoreBackend(client *firestore.Client, name string) *FirestoreBackend {
	if name == "" {
		name = "firestore"
	}
	return &FirestoreBackend{client: client, name: name, maxOps: DefaultMaxOps}
}

// OpenFirestore connects through a Firebase app. With emulated set, the
// client is pointed at cfg.EmulatorHost and no credentials are used.
func OpenFirestore(ctx context.Context, cfg am.StoreConfig, emulated bool) (*firestore.Client, error) {
	projectID := cfg.ProjectID
	var opts []option.ClientOption

	if emulated {
		if cfg.EmulatorHost == "" {
			return nil, errors.NewValidationError("store.emulator_host is required for the emulator destination")
		}
		if err := os.Setenv(EmulatorEnvVar, cfg.EmulatorHost); err != nil {
			return nil, errors.Wrap(err, "set emulator host")
		}
		if projectID == "" {
			projectID = emulatorProjectID
		}
		opts = append(opts, option.WithoutAuthentication())
	} else {
		if projectID == "" {
			return nil, errors.WithHint(
				errors.NewValidationError("store.project_id is required"),
				"set LEGISYNC_STORE_PROJECT_ID or GOOGLE_CLOUD_PROJECT",
			)
		}
		switch {
		case cfg.Token != "":
			opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: cfg.Token,
				TokenType:   "Bearer",
			})))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initialize firebase app")
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "open firestore client")
	}
	return client, nil
}

func (f *FirestoreBackend) Name() string { return f.name }

func (f *FirestoreBackend) MaxOps() int { return f.maxOps }

// Close releases the client
func (f *FirestoreBackend) Close() error {
	return f.client.Close()
}

// Apply writes ops in a single transaction attempt
func (f *FirestoreBackend) Apply(ctx context.Context, ops []Operation) error {
	if len(ops) > f.maxOps {
		return errors.Newf("batch of %d operations exceeds the %d ceiling", len(ops), f.maxOps)
	}

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, op := range ops {
			ref := f.client.Doc(op.Path.String())
			if ref == nil {
				return errors.NewValidationError("invalid document path %s", op.Path)
			}

			var err error
			switch op.Kind {
			case KindSet:
				err = tx.Set(ref, op.Data, setOptions(op)...)
			case KindUpdate:
				err = tx.Update(ref, updates(op.Data))
			case KindDelete:
				err = tx.Delete(ref)
			}
			if err != nil {
				return errors.Wrapf(err, "%s %s", op.Kind, op.Path)
			}
		}
		return nil
	}, firestore.MaxAttempts(1))

	return classifyCommit(err)
}

func setOptions(op Operation) []firestore.SetOption {
	if !op.Merge {
		return nil
	}
	if len(op.MergeFields) == 0 {
		return []firestore.SetOption{firestore.MergeAll}
	}
	paths := make([]firestore.FieldPath, len(op.MergeFields))
	for i, f := range op.MergeFields {
		paths[i] = firestore.FieldPath(strings.Split(f, "."))
	}
	return []firestore.SetOption{firestore.Merge(paths...)}
}

func updates(data map[string]any) []firestore.Update {
	out := make([]firestore.Update, 0, len(data))
	for path, v := range data {
		out = append(out, firestore.Update{Path: path, Value: v})
	}
	return out
}

// classifyCommit marks a commit error with the taxonomy class of its gRPC code
func classifyCommit(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(errors.UnwrapAll(err)) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted, codes.Internal:
		return errors.Mark(err, errors.ErrTransient)
	case codes.NotFound:
		return errors.Mark(err, errors.ErrNotFound)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.PermissionDenied, codes.Unauthenticated, codes.AlreadyExists:
		return errors.Mark(err, errors.ErrClient)
	default:
		return err
	}
}
