package tools

import (
	"context"
	"log/slog"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/server"
)

// registerDatabase registers the SQL and data model tools, plus the NoSQL
// tools outside the international region where that database is not offered.
func registerDatabase(_ context.Context, srv *server.Server) error {
	if region := srv.Region(); config.IsInternationalRegion(region) {
		srv.Logger().Info("NoSQL database tools are not available in this region", slog.String("region", region))
	} else if err := registerActions(srv, "nosql", noSQLTools); err != nil {
		return err
	}
	if err := registerActions(srv, "sql", sqlTools); err != nil {
		return err
	}
	return registerActions(srv, "datamodel", dataModelTools)
}

var noSQLTools = []actionTool{
	{
		name:     "listCollections",
		desc:     "List the NoSQL collections of the current environment.",
		service:  "flexdb",
		action:   "ListTables",
		envParam: "Tag",
		readOnly: true,
		params: []param{
			{name: "limit", field: "MgoLimit", kind: kindNumber, desc: "Page size."},
			{name: "offset", field: "MgoOffset", kind: kindNumber, desc: "Page offset."},
		},
	},
	{
		name:     "createCollection",
		desc:     "Create a NoSQL collection.",
		service:  "flexdb",
		action:   "CreateTable",
		envParam: "Tag",
		params: []param{
			{name: "collectionName", field: "TableName", kind: kindString, required: true, desc: "Collection name."},
		},
	},
	{
		name:     "deleteCollection",
		desc:     "Delete a NoSQL collection and all of its documents.",
		service:  "flexdb",
		action:   "DeleteTable",
		envParam: "Tag",
		params: []param{
			{name: "collectionName", field: "TableName", kind: kindString, required: true, desc: "Collection name."},
		},
	},
	{
		name:     "queryDocuments",
		desc:     "Query documents of a NoSQL collection with a MongoDB style filter.",
		service:  "flexdb",
		action:   "Query",
		envParam: "Tag",
		readOnly: true,
		params: []param{
			{name: "collectionName", field: "TableName", kind: kindString, required: true, desc: "Collection name."},
			{name: "query", field: "MgoQuery", kind: kindString, desc: `JSON filter, e.g. {"status":"active"}.`},
			{name: "projection", field: "MgoProjection", kind: kindString, desc: "JSON projection."},
			{name: "sort", field: "MgoSort", kind: kindString, desc: "JSON sort document."},
			{name: "limit", field: "MgoLimit", kind: kindNumber, desc: "Maximum documents (default 100)."},
			{name: "offset", field: "MgoOffset", kind: kindNumber, desc: "Documents to skip."},
		},
	},
	{
		name:     "insertDocuments",
		desc:     "Insert documents into a NoSQL collection.",
		service:  "flexdb",
		action:   "PutItem",
		envParam: "Tag",
		params: []param{
			{name: "collectionName", field: "TableName", kind: kindString, required: true, desc: "Collection name."},
			{name: "documents", field: "MgoDocs", kind: kindStringArray, required: true, desc: "JSON encoded documents."},
		},
	},
	{
		name:     "updateDocuments",
		desc:     "Update documents of a NoSQL collection that match a filter.",
		service:  "flexdb",
		action:   "UpdateItem",
		envParam: "Tag",
		params: []param{
			{name: "collectionName", field: "TableName", kind: kindString, required: true, desc: "Collection name."},
			{name: "query", field: "MgoQuery", kind: kindString, required: true, desc: "JSON filter."},
			{name: "update", field: "MgoUpdate", kind: kindString, required: true, desc: `JSON update, e.g. {"$set":{"a":1}}.`},
			{name: "isMulti", field: "MgoIsMulti", kind: kindBool, desc: "Update every match instead of the first."},
			{name: "upsert", field: "MgoUpsert", kind: kindBool, desc: "Insert when nothing matches."},
		},
	},
	{
		name:     "deleteDocuments",
		desc:     "Delete documents of a NoSQL collection that match a filter.",
		service:  "flexdb",
		action:   "DeleteItem",
		envParam: "Tag",
		params: []param{
			{name: "collectionName", field: "TableName", kind: kindString, required: true, desc: "Collection name."},
			{name: "query", field: "MgoQuery", kind: kindString, required: true, desc: "JSON filter."},
			{name: "isMulti", field: "MgoIsMulti", kind: kindBool, desc: "Delete every match instead of the first."},
		},
	},
}

var sqlTools = []actionTool{
	{
		name:     "executeReadOnlySQL",
		desc:     "Run a read-only SQL statement against the environment's MySQL database.",
		service:  "tcb",
		action:   "RunSql",
		envParam: "EnvId",
		fixed:    map[string]any{"ReadOnly": true},
		readOnly: true,
		params: []param{
			{name: "sql", field: "Sql", kind: kindString, required: true, desc: "SELECT statement."},
		},
	},
	{
		name:     "executeWriteSQL",
		desc:     "Run a data-changing SQL statement against the environment's MySQL database.",
		service:  "tcb",
		action:   "RunSql",
		envParam: "EnvId",
		fixed:    map[string]any{"ReadOnly": false},
		params: []param{
			{name: "sql", field: "Sql", kind: kindString, required: true, desc: "INSERT, UPDATE, DELETE or DDL statement."},
		},
	},
}

var dataModelTools = []actionTool{
	{
		name:     "listDataModels",
		desc:     "List the data models of the current environment.",
		service:  "lowcode",
		action:   "DescribeDataSourceList",
		envParam: "EnvId",
		readOnly: true,
		params: []param{
			{name: "pageSize", field: "PageSize", kind: kindNumber, desc: "Page size."},
			{name: "pageIndex", field: "PageIndex", kind: kindNumber, desc: "Page number, starting at 1."},
		},
	},
	{
		name:     "getDataModel",
		desc:     "Show the schema of the named data models.",
		service:  "lowcode",
		action:   "DescribeDataSourceList",
		envParam: "EnvId",
		readOnly: true,
		params: []param{
			{name: "names", field: "DataSourceNames", kind: kindStringArray, required: true, desc: "Data model names."},
		},
	},
}
