/*
Package asn2ip resolves Autonomous System Numbers to the IPv4 and IPv6
network prefixes they originate. Queries are answered by an IRR server such
as whois.radb.net using its line-oriented bulk query protocol. There are 3
fundamental types of objects available in this library.

Fetchers

A Fetcher maps a batch of ASNs to their originated networks. The default
implementation, Resolver, opens one registry session per batch and issues
one query per ASN and address family. Fetchers can be wrapped to add
behavior, for example the Syslog fetcher which logs every resolution, or
backed by an offline data source such as MMDB.

Caches

A Cache sits in front of the Resolver's registry queries and stores raw
responses keyed by (ASN, address family) for a bounded time. Several
backends are available: memcached, Redis, and an in-process memory cache.
Backend failures degrade to registry lookups, they never fail a batch.

Sessions

A Session owns a single TCP connection to the registry, enables bulk mode
and issues strictly interleaved per-ASN commands. Sessions are single-use;
any protocol or network error invalidates the whole session.
*/
package asn2ip
