/*
Package iris implements an embedded document/graph store.

A database is a set of named graphs. A graph is a collection of nodes, each
with a numeric id, an arbitrary JSON-like payload and a list of edges to other
nodes. Clients talk to the database through requests made of directives:

	{
	  "insert": [
	    {"$ref": "alice", "data": {"name": "Alice"}},
	    {"data": {"name": "Bob"}, "edges": [{"name": "knows", "to": {"$use": "alice"}}]}
	  ],
	  "get": [{"where": {"name": "Bob"}}]
	}

Every statement runs independently; the response lists the results and the
errors of all of them.

# Technical Details

**Identifiers.**
Each graph allocates ids from a cursor. Ids of deleted nodes are reused,
smallest first, before the cursor advances.

**Pages.**
Nodes are persisted as records appended to size-bounded page files named
<graph>.<pos>. When a record does not fit into the active page, the page is
rolled over and the record goes to page pos+1. Records are never split.
Deletions are appended as tombstone records, so replaying all pages in order
reconstructs the graph.

**Page header.**
The first line of a page is a fixed-width header of KEY=VALUE pairs:

	COUNT=00000000000000000002 POS=00000000000000000000 CODEC=bson ZIP=none

It is rewritten in place after each append.

**Metadata.**
<graph>.meta holds the number of live nodes and the active page position, and
is replaced atomically after every mutation.

**Records.**
A record is a BSON document (or a uvarint-framed msgpack map), optionally
compressed with snappy or zlib and then framed with a uvarint length:

	{"_id": 1, "data": ..., "edges": [{"name": ..., "to": ..., "dir": "out"}]}
	{"_id": 1, "_del": true}

**References.**
Before executing a request, every object carrying a "$ref" name is collected
into a reference table. Directives record produced ids into it, and later
statements refer to them with {"$use": "<name>"}.
*/
package iris
