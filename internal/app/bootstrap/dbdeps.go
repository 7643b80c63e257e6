// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/app/system/devicechan"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the back-end dependencies shared by every handler: the
// MongoDB client and database, and the single device link with the
// correlator that pairs its feedback with waiting workflows.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Device     *devicechan.Hub
	Correlator *correlator.Correlator
}
