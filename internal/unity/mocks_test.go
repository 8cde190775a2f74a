package unity

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/rest/resttest"
)

// newTestSystem returns a System over a fake array seeded with:
//
//	sv_4                        thin LUN, attached to Host_14 (hlu 1) and Host_15 (hlu 3)
//	sv_3339, sv_3340, sv_3341   standalone thin LUNs
//	sv_7                        thick LUN
//	Host_14, Host_15, Host_22   hosts; Host_22 has nothing attached
//
// The fake applies host access changes to both the LUN and the host the
// way the array does, so attach and detach can be observed from either
// side.
func newTestSystem(t *testing.T, ver string) (*resttest.Fake, *System) {
	t.Helper()
	fake := resttest.New(ver)

	putHost(fake, "Host_14", "esx-14")
	putHost(fake, "Host_15", "esx-15")
	putHost(fake, "Host_22", "esx-22")

	putLUN(fake, "sv_4", "vol-a", true, 5<<30)
	putLUN(fake, "sv_3339", "muse-1", true, 1<<30)
	putLUN(fake, "sv_3340", "muse-2", true, 1<<30)
	putLUN(fake, "sv_3341", "muse-3", true, 1<<30)
	putLUN(fake, "sv_7", "thick", false, 1<<30)

	grant(fake, "sv_4", "Host_14", 1)
	grant(fake, "sv_4", "Host_15", 3)

	installArray(fake)

	sys := New(fake,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithPollInterval(time.Millisecond),
	)
	return fake, sys
}

func putHost(f *resttest.Fake, id, name string) {
	f.Put(typeHost, map[string]any{
		"id":                  id,
		"name":                name,
		"type":                float64(HostManual),
		"hostLUNs":            []any{},
		"fcHostInitiators":    []any{},
		"iscsiHostInitiators": []any{},
		"hostIPPorts":         []any{},
	})
}

func putLUN(f *resttest.Fake, id, name string, thin bool, size int64) {
	f.Put(typeLUN, map[string]any{
		"id":              id,
		"name":            name,
		"sizeTotal":       float64(size),
		"isThinEnabled":   thin,
		"storageResource": map[string]any{"id": id, "type": float64(StorageResourceLUN)},
		"pool":            map[string]any{"id": "pool_1", "name": "perf"},
		"hostAccess":      []any{},
	})
	f.Put(typeStorageResource, map[string]any{
		"id":   id,
		"name": name,
		"type": float64(StorageResourceLUN),
		"luns": []any{map[string]any{"id": id}},
	})
}

// grant attaches lunID to hostID at hlu on both sides.
func grant(f *resttest.Fake, lunID, hostID string, hlu int) {
	lun := f.Object(typeLUN, lunID)
	host := f.Object(typeHost, hostID)
	lun["hostAccess"] = append(asList(lun["hostAccess"]), map[string]any{
		"host":       map[string]any{"id": hostID, "name": host["name"]},
		"accessMask": float64(AccessProduction),
	})
	addHostLUN(host, lunID, lun["name"].(string), "", hlu)
}

func installArray(f *resttest.Fake) {
	f.Handle(resttest.MethodAction, typeStorageResource, "modifyLun", handleModifyLUN)
	f.Handle(resttest.MethodTypeAction, typeStorageResource, "createLun", handleCreateLUN)
	f.Handle(resttest.MethodTypeAction, typeStorageResource, "createConsistencyGroup", handleCreateCG)
	f.Handle(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup", handleModifyCG)
	f.Handle(resttest.MethodAction, typeHost, "modifyHostLUNs", handleModifyHostLUNs)
	for _, action := range []string{"attach", "modify", "detach"} {
		f.Handle(resttest.MethodAction, typeSnap, action, handleSnapAccess)
	}
}

func handleModifyLUN(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
	lun := f.Object(typeLUN, call.ID)
	if lun == nil {
		return resttest.Failure(apierrors.KindNotFound, "no such lun"), nil
	}
	if name, ok := call.Body["name"].(string); ok {
		lun["name"] = name
	}
	params := asMap(call.Body["lunParameters"])
	if size, ok := params["size"]; ok {
		lun["sizeTotal"] = float64(toInt(size))
	}
	if access, ok := params["hostAccess"]; ok {
		if resp := applyLUNHostAccess(f, call.ID, asList(access)); resp != nil {
			return resp, nil
		}
	}
	return rest.OK(), nil
}

// applyLUNHostAccess replaces the host access of a LUN and mirrors the
// change into each host's hostLUNs. A requested hlu already used on the
// host fails the whole request.
func applyLUNHostAccess(f *resttest.Fake, lunID string, access []any) *rest.Response {
	lun := f.Object(typeLUN, lunID)
	for _, a := range access {
		e := asMap(a)
		hlu, ok := e["hlu"]
		if !ok {
			continue
		}
		host := f.Object(typeHost, refID(e["host"]))
		if host != nil && hluTaken(host, toInt(hlu)) {
			return resttest.Failure(apierrors.KindHLUNumberInUse, fmt.Sprintf("hlu %d is in use", toInt(hlu)))
		}
	}

	keep := map[string]bool{}
	newAccess := []any{}
	for _, a := range access {
		e := asMap(a)
		hostID := refID(e["host"])
		keep[hostID] = true
		host := f.Object(typeHost, hostID)
		var name any
		if host != nil {
			name = host["name"]
		}
		newAccess = append(newAccess, map[string]any{
			"host":       map[string]any{"id": hostID, "name": name},
			"accessMask": e["accessMask"],
		})
		if host == nil || findHostLUN(host, lunID, "") != nil {
			continue
		}
		hlu := lowestFreeHLU(host)
		if v, ok := e["hlu"]; ok {
			hlu = toInt(v)
		}
		addHostLUN(host, lunID, fmt.Sprint(lun["name"]), "", hlu)
	}
	lun["hostAccess"] = newAccess

	for _, host := range f.Objects(typeHost) {
		if !keep[fmt.Sprint(host["id"])] {
			removeHostLUN(host, lunID, "")
		}
	}
	return nil
}

func handleModifyHostLUNs(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
	host := f.Object(typeHost, call.ID)
	if host == nil {
		return resttest.Failure(apierrors.KindNotFound, "no such host"), nil
	}
	for _, m := range asList(call.Body["hostLunModifyList"]) {
		e := asMap(m)
		id := refID(e["hostLUN"])
		hlu := toInt(e["hlu"])
		for _, entry := range asList(host["hostLUNs"]) {
			hl := asMap(entry)
			if hl["id"] != id && toInt(hl["hlu"]) == hlu {
				return resttest.Failure(apierrors.KindHLUNumberInUse, "hlu in use"), nil
			}
		}
		for _, entry := range asList(host["hostLUNs"]) {
			if hl := asMap(entry); hl["id"] == id {
				hl["hlu"] = float64(hlu)
			}
		}
	}
	return rest.OK(), nil
}

func handleCreateLUN(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
	name, _ := call.Body["name"].(string)
	for _, sr := range f.Objects(typeStorageResource) {
		if sr["name"] == name {
			return resttest.Failure(apierrors.KindNameInUse, "lun name in use"), nil
		}
	}
	params := asMap(call.Body["lunParameters"])
	thin, _ := params["isThinEnabled"].(bool)
	id := f.NextID("sv")
	putLUN(f, id, name, thin, int64(toInt(params["size"])))
	return resttest.Content(map[string]any{"storageResource": map[string]any{"id": id}}), nil
}

func handleCreateCG(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
	name, _ := call.Body["name"].(string)
	for _, sr := range f.Objects(typeStorageResource) {
		if sr["name"] == name {
			return resttest.Failure(apierrors.KindStorageResourceNameInUse, "storage resource name in use"), nil
		}
	}
	id := f.NextID("res")
	f.Put(typeStorageResource, map[string]any{
		"id":   id,
		"name": name,
		"type": float64(StorageResourceConsistencyGroup),
		"luns": []any{},
	})
	cg := f.Object(typeStorageResource, id)
	for _, a := range asList(call.Body["lunAdd"]) {
		addCGMember(f, cg, refID(asMap(a)["lun"]))
	}
	return resttest.Content(map[string]any{"storageResource": map[string]any{"id": id}}), nil
}

func handleModifyCG(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
	cg := f.Object(typeStorageResource, call.ID)
	if cg == nil {
		return resttest.Failure(apierrors.KindNotFound, "no such cg"), nil
	}
	if name, ok := call.Body["name"].(string); ok {
		cg["name"] = name
	}
	for _, a := range asList(call.Body["lunAdd"]) {
		addCGMember(f, cg, refID(asMap(a)["lun"]))
	}
	for _, r := range asList(call.Body["lunRemove"]) {
		lunID := refID(asMap(r)["lun"])
		members := []any{}
		for _, m := range asList(cg["luns"]) {
			if refID(m) != lunID {
				members = append(members, m)
			}
		}
		cg["luns"] = members
		if lun := f.Object(typeLUN, lunID); lun != nil {
			lun["storageResource"] = map[string]any{"id": lunID, "type": float64(StorageResourceLUN)}
		}
	}
	for _, m := range asList(call.Body["lunModify"]) {
		e := asMap(m)
		lunID := refID(e["lun"])
		lun := f.Object(typeLUN, lunID)
		if lun == nil {
			return resttest.Failure(apierrors.KindNotFound, "no such member"), nil
		}
		if name, ok := e["name"].(string); ok {
			lun["name"] = name
		}
		params := asMap(e["lunParameters"])
		if size, ok := params["size"]; ok {
			lun["sizeTotal"] = float64(toInt(size))
		}
		if access, ok := params["hostAccess"]; ok {
			if resp := applyLUNHostAccess(f, lunID, asList(access)); resp != nil {
				return resp, nil
			}
		}
	}
	return rest.OK(), nil
}

func addCGMember(f *resttest.Fake, cg map[string]any, lunID string) {
	cg["luns"] = append(asList(cg["luns"]), map[string]any{"id": lunID})
	if lun := f.Object(typeLUN, lunID); lun != nil {
		lun["storageResource"] = map[string]any{"id": cg["id"], "type": float64(StorageResourceConsistencyGroup)}
	}
}

// handleSnapAccess implements the snap attach, modify and detach actions.
func handleSnapAccess(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
	snap := f.Object(typeSnap, call.ID)
	if snap == nil {
		return resttest.Failure(apierrors.KindNotFound, "no such snap"), nil
	}
	if call.Action == "modify" {
		if _, ok := call.Body["hostAccess"]; !ok {
			return f.Default(call)
		}
	}
	var access []any
	if call.Action != "detach" {
		access = asList(call.Body["hostAccess"])
	}

	keep := map[string]bool{}
	newAccess := []any{}
	for _, a := range access {
		e := asMap(a)
		hostID := refID(e["host"])
		keep[hostID] = true
		newAccess = append(newAccess, map[string]any{
			"host":          map[string]any{"id": hostID},
			"allowedAccess": e["allowedAccess"],
		})
		host := f.Object(typeHost, hostID)
		if host != nil && findHostLUN(host, "", call.ID) == nil {
			addHostLUN(host, refID(snap["lun"]), "", call.ID, lowestFreeHLU(host))
		}
	}
	snap["hostAccess"] = newAccess
	for _, host := range f.Objects(typeHost) {
		if !keep[fmt.Sprint(host["id"])] {
			removeHostLUN(host, "", call.ID)
		}
	}
	return rest.OK(), nil
}

func addHostLUN(host map[string]any, lunID, lunName, snapID string, hlu int) {
	kind := "prod"
	if snapID != "" {
		kind = snapID
	}
	entry := map[string]any{
		"id":  fmt.Sprintf("%s_%s_%s", host["id"], lunID, kind),
		"hlu": float64(hlu),
		"lun": map[string]any{"id": lunID, "name": lunName},
	}
	if snapID != "" {
		entry["snap"] = map[string]any{"id": snapID}
	}
	host["hostLUNs"] = append(asList(host["hostLUNs"]), entry)
}

// findHostLUN matches a LUN entry when snapID is empty and a snapshot
// entry otherwise.
func findHostLUN(host map[string]any, lunID, snapID string) map[string]any {
	for _, entry := range asList(host["hostLUNs"]) {
		hl := asMap(entry)
		snap := refID(hl["snap"])
		if snapID == "" && snap == "" && refID(hl["lun"]) == lunID {
			return hl
		}
		if snapID != "" && snap == snapID {
			return hl
		}
	}
	return nil
}

func removeHostLUN(host map[string]any, lunID, snapID string) {
	target := findHostLUN(host, lunID, snapID)
	if target == nil {
		return
	}
	kept := []any{}
	for _, entry := range asList(host["hostLUNs"]) {
		if asMap(entry)["id"] != target["id"] {
			kept = append(kept, entry)
		}
	}
	host["hostLUNs"] = kept
}

func hluTaken(host map[string]any, hlu int) bool {
	for _, entry := range asList(host["hostLUNs"]) {
		if toInt(asMap(entry)["hlu"]) == hlu {
			return true
		}
	}
	return false
}

// lowestFreeHLU is how the array picks when the request carries no hlu.
func lowestFreeHLU(host map[string]any) int {
	for n := 0; ; n++ {
		if !hluTaken(host, n) {
			return n
		}
	}
}

// hostHLU reads the hlu of a LUN entry straight from the fake.
func hostHLU(f *resttest.Fake, hostID, lunID string) (int, bool) {
	hl := findHostLUN(f.Object(typeHost, hostID), lunID, "")
	if hl == nil {
		return 0, false
	}
	return toInt(hl["hlu"]), true
}

func asMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case rest.Body:
		return t
	}
	return nil
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []rest.Body:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	}
	return nil
}

func refID(v any) string {
	s, _ := asMap(v)["id"].(string)
	return s
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

// bodyAt walks nested maps and the first element of lists.
func bodyAt(b rest.Body, path ...string) any {
	var cur any = map[string]any(b)
	for _, key := range path {
		if list := asList(cur); list != nil {
			if len(list) == 0 {
				return nil
			}
			cur = list[0]
		}
		m := asMap(cur)
		if m == nil {
			return nil
		}
		cur = m[key]
	}
	if list := asList(cur); list != nil {
		if len(list) == 0 {
			return nil
		}
		cur = list[0]
	}
	return cur
}
