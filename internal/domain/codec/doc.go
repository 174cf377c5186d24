/*
Package codec converts between the JSON wire format and the routing core's types.

Wire request:

	{ "message": <string|object>, "tags": {<name>: <int|string>}, "metadata": {...} }

Only the three top-level properties are accepted. A non-string message requires
a MessageParser. Empty tags and metadata always encode as {}.

Connections carry their tags in a single query-string parameter holding a JSON
object; QueryTagsParser decodes it and memoises the result per raw value.
*/
package codec
