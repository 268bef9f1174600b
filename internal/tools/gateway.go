package tools

var gatewayTools = []actionTool{
	{
		name:     "listGatewayAccess",
		desc:     "List the HTTP access paths of the environment gateway.",
		service:  "tcb",
		action:   "DescribeCloudBaseGWAPI",
		envParam: "ServiceId",
		readOnly: true,
		params: []param{
			{name: "path", field: "Path", kind: kindString, desc: "Filter by path."},
			{name: "name", field: "Name", kind: kindString, desc: "Filter by target name."},
		},
	},
	{
		name:     "createFunctionHTTPAccess",
		desc:     "Expose a cloud function over HTTP at the given path.",
		service:  "tcb",
		action:   "CreateCloudBaseGWAPI",
		envParam: "ServiceId",
		fixed:    map[string]any{"Type": 1, "EnableUnion": true},
		params: []param{
			{name: "name", field: "Name", kind: kindString, required: true, desc: "Function name."},
			{name: "path", field: "Path", kind: kindString, required: true, desc: "Access path, e.g. /api."},
		},
	},
	{
		name:     "deleteGatewayAccess",
		desc:     "Remove an HTTP access path from the environment gateway.",
		service:  "tcb",
		action:   "DeleteCloudBaseGWAPI",
		envParam: "ServiceId",
		params: []param{
			{name: "path", field: "Path", kind: kindString, required: true, desc: "Access path."},
		},
	},
}
