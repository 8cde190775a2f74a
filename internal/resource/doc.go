// Package resource provides lazily loaded handles to remote array objects
// and filtered collections of them.
//
// # Handles
//
// A Resource is an identity (type name plus id) and a property cache. New
// returns a hollow handle without contacting the array. The first call to
// Properties, or any accessor built on it, fetches the object together with
// the nested field paths declared on its Type. Later reads are served from
// the cache until Update forces a refetch or a mutation (Modify, Action,
// Delete) invalidates it.
//
// A missing object is reported when the handle is first read, as an error
// matching apierrors.ErrNotFound, never at construction.
//
// Handles compare with Equal by type and id only:
//
//	a := resource.New(cli, lunType, "sv_4")
//	b := resource.New(cli, lunType, "sv_4")
//	a.Equal(b) // true, even though neither has been fetched
//
// # Collections
//
// A List is built with server-side filters (WithFilter) and client-side
// predicates (WithPredicate). It fetches once, keeps server order, and
// serves Len, Items, At, First, IDs and Table from that single fetch.
// Collection wraps a List to yield domain types.
package resource
