package server

import (
	"fmt"
	"net/http"
)

func (s *Server) handleABScript(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(GenerateABScript(fmt.Sprintf("%s://%s", scheme, r.Host))))
}

// GenerateABScript returns the browser client. Every element carrying
// data-ab-test gets the visitor's variant applied and reports an impression;
// elements with data-ab-click or data-ab-convert report the matching event.
func GenerateABScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';
  var API=S+'/api/seo/abtests/';

  var uid=localStorage.getItem('seopulse_uid');
  if(!uid){
    uid=crypto.randomUUID();
    localStorage.setItem('seopulse_uid',uid);
  }

  var assigned={},shown={};

  function assign(test){
    if(!assigned[test]){
      assigned[test]=fetch(API+encodeURIComponent(test)+'/assign?user='+encodeURIComponent(uid))
        .then(function(r){return r.ok?r.json():null;})
        .then(function(body){return body&&body.data?body.data.variant:null;})
        .catch(function(){return null;});
    }
    return assigned[test];
  }

  function apply(changes){
    (changes||[]).forEach(function(c){
      if(c.type==='title'){document.title=c.value;return;}
      if(c.type==='description'){
        var m=document.querySelector('meta[name="description"]');
        if(m)m.setAttribute('content',c.value);
        return;
      }
      if(!c.selector)return;
      document.querySelectorAll(c.selector).forEach(function(el){
        if(c.type==='layout'){el.className=c.value;}
        else if(c.type==='content'){el.innerHTML=c.value;}
        else{el.textContent=c.value;}
      });
    });
  }

  function beacon(test,variant,event){
    navigator.sendBeacon(API+encodeURIComponent(test)+'/events',
      new Blob([JSON.stringify({variant:variant,event:event})],{type:'application/json'}));
  }

  function on(attr,event){
    document.querySelectorAll('['+attr+']').forEach(function(el){
      var test=el.getAttribute(attr);
      el.addEventListener('click',function(){
        assign(test).then(function(v){if(v)beacon(test,v.id,event);});
      });
    });
  }

  document.querySelectorAll('[data-ab-test]').forEach(function(el){
    var test=el.getAttribute('data-ab-test');
    assign(test).then(function(v){
      if(!v)return;
      apply(v.changes);
      if(shown[test])return;
      shown[test]=true;
      beacon(test,v.id,'impression');
    });
  });

  on('data-ab-click','click');
  on('data-ab-convert','conversion');
})();`, serverURL)
}
